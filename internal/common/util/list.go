package util

// CopyList returns a shallow copy of list. Nil stays nil.
func CopyList[T any](list []T) []T {
	if list == nil {
		return nil
	}
	result := make([]T, len(list))
	copy(result, list)
	return result
}

type DeepCopier[T any] interface {
	DeepCopy() T
}

// DeepCopyList returns a copy of list in which every element has been deep copied.
func DeepCopyList[T DeepCopier[T]](list []T) []T {
	if list == nil {
		return nil
	}
	result := make([]T, len(list))
	for i, v := range list {
		result[i] = v.DeepCopy()
	}
	return result
}
