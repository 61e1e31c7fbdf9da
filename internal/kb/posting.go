package kb

import "sort"

// PostingList is an ascending list of phrase IDs.
type PostingList []PhraseID

// Contains reports whether id is in the list.
func (p PostingList) Contains(id PhraseID) bool {
	i := sort.Search(len(p), func(i int) bool { return p[i] >= id })
	return i < len(p) && p[i] == id
}

// Intersect returns the IDs present in every list. Lists should be ordered
// shortest first: the first list bounds the candidates and each following
// list only filters them.
func Intersect(lists ...PostingList) PostingList {
	if len(lists) == 0 {
		return nil
	}
	result := make(PostingList, len(lists[0]))
	copy(result, lists[0])
	for _, list := range lists[1:] {
		if len(result) == 0 {
			break
		}
		kept := result[:0]
		for _, id := range result {
			if list.Contains(id) {
				kept = append(kept, id)
			}
		}
		result = kept
	}
	return result
}
