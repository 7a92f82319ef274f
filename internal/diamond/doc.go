// Package diamond maps linear cell indices onto an expanding diamond grid.
//
// The center cell (index 0) sits at (0,0). Every other index belongs to a
// ring k >= 1, the set of coordinates with |x|+|y| = k. Ring k holds 4k cells
// and occupies the contiguous index block starting at 1+2k(k-1):
//
//	ring 1: indices 1..4
//	ring 2: indices 5..12
//	ring 3: indices 13..24
//
// Within a ring, indices walk clockwise from the north vertex (0,k):
//
//	edge 0: (0,k)  -> (k,0)   step (+1,-1)
//	edge 1: (k,0)  -> (0,-k)  step (-1,-1)
//	edge 2: (0,-k) -> (-k,0)  step (-1,+1)
//	edge 3: (-k,0) -> (0,k)   step (+1,+1)
//
// Growing the grid ring by ring means the inward neighbors of a new cell
// always exist before it does.
//
// All functions are pure and safe for concurrent use.
package diamond
