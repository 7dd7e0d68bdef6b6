package history

// ActivityItem is one row of the wallet's activity list.
type ActivityItem struct {
	ID        string `json:"id"`
	TxID      string `json:"txid"`
	Value     uint64 `json:"value"`
	Fee       uint64 `json:"fee"`
	IsBoosted bool   `json:"isBoosted"`

	// OwnFee is the item's fee before boost fees were folded in. Only
	// set on boosted items.
	OwnFee uint64 `json:"ownFee,omitempty"`
}

// Project folds boost records into raw activity items:
//   - a boost whose ancestor is listed is absorbed into it and dropped
//   - a listed transaction with boosts built on it is marked boosted and
//     shows its own fee plus the fee of every descendant
//   - a boost whose ancestors are all absent (a replaced original) stays,
//     marked boosted
//
// Order is preserved. Project is idempotent.
func Project(items []ActivityItem, records []*Record) []ActivityItem {
	byChild := make(map[string]*Record, len(records))
	children := make(map[string][]string)
	for _, rec := range records {
		byChild[rec.ChildTxID] = rec
		for _, p := range rec.ParentTxIDs {
			children[p] = append(children[p], rec.ChildTxID)
		}
	}

	listed := make(map[string]struct{}, len(items))
	for _, it := range items {
		listed[it.TxID] = struct{}{}
	}

	out := make([]ActivityItem, 0, len(items))
	for _, it := range items {
		_, isChild := byChild[it.TxID]
		if isChild && hasListedAncestor(it.TxID, byChild, listed) {
			continue
		}
		desc := descendants(children, it.TxID)
		if !isChild && len(desc) == 0 {
			out = append(out, it)
			continue
		}

		base := it.Fee
		if it.IsBoosted {
			base = it.OwnFee
		}
		total := base
		for _, d := range desc {
			total += byChild[d].Fee
		}
		it.OwnFee = base
		it.Fee = total
		it.IsBoosted = true
		out = append(out, it)
	}
	return out
}

func hasListedAncestor(txid string, byChild map[string]*Record, listed map[string]struct{}) bool {
	seen := map[string]struct{}{txid: {}}
	queue := []string{txid}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		rec, ok := byChild[id]
		if !ok {
			continue
		}
		for _, p := range rec.ParentTxIDs {
			if _, ok := listed[p]; ok {
				return true
			}
			if _, ok := seen[p]; !ok {
				seen[p] = struct{}{}
				queue = append(queue, p)
			}
		}
	}
	return false
}
