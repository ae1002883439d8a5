package solana

// MaxAccounts is the most distinct accounts a legacy message can index with
// its single-byte account indices.
const MaxAccounts = 256

// MessageHeader holds the three counts at the start of a legacy message.
type MessageHeader struct {
	NumRequiredSignatures       uint8
	NumReadonlySignedAccounts   uint8
	NumReadonlyUnsignedAccounts uint8
}

// ResolvedAccounts is the ordered account table for one message.
type ResolvedAccounts struct {
	Accounts []AccountMeta
	index    map[PublicKey]int
}

// IndexOf returns the position of key in the account table.
func (r *ResolvedAccounts) IndexOf(key PublicKey) (int, bool) {
	i, ok := r.index[key]
	return i, ok
}

// Keys returns the account keys in table order.
func (r *ResolvedAccounts) Keys() []PublicKey {
	keys := make([]PublicKey, len(r.Accounts))
	for i, a := range r.Accounts {
		keys[i] = a.PublicKey
	}
	return keys
}

// Header counts signers, readonly signers and readonly non-signers.
func (r *ResolvedAccounts) Header() MessageHeader {
	var h MessageHeader
	for _, a := range r.Accounts {
		switch {
		case a.IsSigner && a.IsWritable:
			h.NumRequiredSignatures++
		case a.IsSigner:
			h.NumRequiredSignatures++
			h.NumReadonlySignedAccounts++
		case !a.IsWritable:
			h.NumReadonlyUnsignedAccounts++
		}
	}
	return h
}

// ResolveAccounts builds the account table for feePayer and instructions.
//
// The fee payer goes first as a writable signer. Instruction accounts are
// merged in first-seen order with their signer/writable flags OR'd, and each
// program id is added as a readonly non-signer unless already present. The
// result is then stably partitioned into writable signers, readonly signers,
// writable non-signers and readonly non-signers.
func ResolveAccounts(feePayer PublicKey, instructions []Instruction) (*ResolvedAccounts, error) {
	order := make([]AccountMeta, 0, 2+len(instructions)*3)
	seen := make(map[PublicKey]int)

	add := func(meta AccountMeta) {
		if i, ok := seen[meta.PublicKey]; ok {
			order[i].IsSigner = order[i].IsSigner || meta.IsSigner
			order[i].IsWritable = order[i].IsWritable || meta.IsWritable
			return
		}
		seen[meta.PublicKey] = len(order)
		order = append(order, meta)
	}

	add(AccountMeta{PublicKey: feePayer, IsSigner: true, IsWritable: true})
	for _, ix := range instructions {
		for _, meta := range ix.Accounts {
			add(meta)
		}
		add(AccountMeta{PublicKey: ix.ProgramID})
	}

	if len(order) > MaxAccounts {
		return nil, newError(KindTooManyAccounts, "resolve accounts", "%d distinct accounts, limit is %d", len(order), MaxAccounts)
	}

	var buckets [4][]AccountMeta
	for _, meta := range order {
		buckets[bucketOf(meta)] = append(buckets[bucketOf(meta)], meta)
	}
	// header counts are single bytes
	if signers := len(buckets[0]) + len(buckets[1]); signers > 255 {
		return nil, newError(KindTooManyAccounts, "resolve accounts", "%d signers, limit is 255", signers)
	}

	resolved := &ResolvedAccounts{
		Accounts: make([]AccountMeta, 0, len(order)),
		index:    make(map[PublicKey]int, len(order)),
	}
	for _, bucket := range buckets {
		for _, meta := range bucket {
			resolved.index[meta.PublicKey] = len(resolved.Accounts)
			resolved.Accounts = append(resolved.Accounts, meta)
		}
	}
	return resolved, nil
}

func bucketOf(meta AccountMeta) int {
	switch {
	case meta.IsSigner && meta.IsWritable:
		return 0
	case meta.IsSigner:
		return 1
	case meta.IsWritable:
		return 2
	default:
		return 3
	}
}
