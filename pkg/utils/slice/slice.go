/*
 * Copyright (c) 2025, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package slice

import (
	"github.com/AMD-AIG-AIMA/cloudlab/pkg/utils/sets"
)

func ContainsString(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

func RemoveString(slice []string, s string) ([]string, bool) {
	result := make([]string, 0, len(slice))
	hasRemove := false
	for _, item := range slice {
		if item != s {
			result = append(result, item)
		} else {
			hasRemove = true
		}
	}
	return result, hasRemove
}

// Appends strings from slice2 to slice1, skipping duplicates.
// Returns the resulting slice and a boolean indicating if any elements were newly added.
func AddAndDelDuplicates(slice1, slice2 []string) ([]string, bool) {
	result := make([]string, 0, len(slice1)+len(slice2))
	slice1Set := sets.NewSet()
	for i := range slice1 {
		result = append(result, slice1[i])
		slice1Set.Insert(slice1[i])
	}
	hasAdd := false
	for i := range slice2 {
		if slice1Set.Has(slice2[i]) {
			continue
		}
		hasAdd = true
		result = append(result, slice2[i])
	}
	return result, hasAdd
}
