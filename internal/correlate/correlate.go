// Package correlate pairs stage responses with batch items by filename.
//
// Remote stages return results keyed by the filename the backend saw, which
// may differ from the submitted name in case or path prefix. Assignment works
// on normalized keys and guarantees each response entry feeds at most one
// item.
package correlate

// Unassigned marks an item that received no response entry.
const Unassigned = -1

// Assign maps each item key to a response entry index, or Unassigned.
//
// itemKeys holds the normalized correlation key per item, in item order.
// entryKeys holds the candidate normalized keys per response entry; an entry
// matches an item when any of its keys equals the item key. Exact matches win
// first; items still unmatched fall back to the first unconsumed entry in
// response order. Every entry is consumed at most once.
func Assign(itemKeys []string, entryKeys [][]string) []int {
	assigned := make([]int, len(itemKeys))
	consumed := make([]bool, len(entryKeys))

	for i := range assigned {
		assigned[i] = Unassigned
	}

	for i, key := range itemKeys {
		if key == "" {
			continue
		}
		for j, keys := range entryKeys {
			if consumed[j] {
				continue
			}
			if matchesKey(keys, key) {
				assigned[i] = j
				consumed[j] = true
				break
			}
		}
	}

	for i := range itemKeys {
		if assigned[i] != Unassigned {
			continue
		}
		for j := range entryKeys {
			if !consumed[j] {
				assigned[i] = j
				consumed[j] = true
				break
			}
		}
	}

	return assigned
}

func matchesKey(keys []string, key string) bool {
	for _, candidate := range keys {
		if candidate != "" && candidate == key {
			return true
		}
	}
	return false
}
