package contracts

// InOutGroup is the inputs and outputs of a transaction that share a grouping key.
type InOutGroup[T any, K comparable] struct {
	Inputs      []T
	Outputs     []T
	GroupingKey K
}

// GroupStates partitions the transaction's states of type T by selector.
//
// Groups are emitted for every input key in first-seen order, paired with the outputs of
// the same key. Keys seen only among outputs follow, in first-seen order, with no inputs.
func GroupStates[T ContractState, K comparable](tx *TransactionForVerification, selector func(T) K) []InOutGroup[T, K] {
	return GroupStatesOf(tx.InStates, tx.OutStates, selector)
}

// GroupStatesOf is GroupStates over explicit input and output lists.
func GroupStatesOf[T ContractState, K comparable](inputs, outputs []ContractState, selector func(T) K) []InOutGroup[T, K] {
	inKeys, inGroups := partition(inputs, selector)
	outKeys, outGroups := partition(outputs, selector)

	groups := make([]InOutGroup[T, K], 0, len(inKeys)+len(outKeys))

	for _, k := range inKeys {
		groups = append(groups, InOutGroup[T, K]{
			Inputs:      inGroups[k],
			Outputs:     nonNil(outGroups[k]),
			GroupingKey: k,
		})
	}

	for _, k := range outKeys {
		if _, ok := inGroups[k]; ok {
			continue
		}

		groups = append(groups, InOutGroup[T, K]{
			Inputs:      []T{},
			Outputs:     outGroups[k],
			GroupingKey: k,
		})
	}

	return groups
}

// partition filters states to T and buckets them by key, remembering key order.
func partition[T ContractState, K comparable](states []ContractState, selector func(T) K) ([]K, map[K][]T) {
	var keys []K
	buckets := make(map[K][]T)

	for _, s := range states {
		typed, ok := s.(T)
		if !ok {
			continue
		}

		k := selector(typed)
		if _, seen := buckets[k]; !seen {
			keys = append(keys, k)
		}

		buckets[k] = append(buckets[k], typed)
	}

	return keys, buckets
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
