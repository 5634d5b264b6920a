// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package enhance

// Splits [0,n) into 8*maxThreads work packages and applies fn to each, with at most maxThreads
// packages in flight. Runs inline if maxThreads<=1. Returns once all packages are done.
func parallelRanges(n, maxThreads int, fn func(lower, upper int)) {
	if n <= 0 {
		return
	}
	if maxThreads <= 1 {
		fn(0, n)
		return
	}

	numBatches := 8 * maxThreads
	batchSize := (n + numBatches - 1) / numBatches
	sem := make(chan bool, maxThreads)
	for lower := 0; lower < n; lower += batchSize {
		upper := lower + batchSize
		if upper > n {
			upper = n
		}

		sem <- true
		go func(lower, upper int) {
			defer func() { <-sem }()
			fn(lower, upper)
		}(lower, upper)
	}

	for i := 0; i < cap(sem); i++ { // wait for goroutines to finish
		sem <- true
	}
}
