package mot

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthurkushman/go-hungarian"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy takes pairs by highest IoU first
	MatchingAlgorithmGreedy
)

func (algorithm MatchingAlgorithm) String() string {
	switch algorithm {
	case MatchingAlgorithmHungarian:
		return "hungarian"
	case MatchingAlgorithmGreedy:
		return "greedy"
	default:
		return fmt.Sprintf("MatchingAlgorithm(%d)", uint16(algorithm))
	}
}

// ParseMatchingAlgorithm parses textual name of matching algorithm
func ParseMatchingAlgorithm(s string) (MatchingAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hungarian":
		return MatchingAlgorithmHungarian, nil
	case "greedy":
		return MatchingAlgorithmGreedy, nil
	default:
		return MatchingAlgorithmHungarian, fmt.Errorf("unknown matching algorithm: '%s'", s)
	}
}

// createIoUMatrix builds IoU matrix: rows = predicted track boxes, columns = detections
func createIoUMatrix(trackBBoxes []Rectangle, detections []Rectangle) [][]float64 {
	iouMatrix := make([][]float64, len(trackBBoxes))
	for i, trkBox := range trackBBoxes {
		row := make([]float64, len(detections))
		for j, detRect := range detections {
			row[j] = IoU(trkBox, detRect)
		}
		iouMatrix[i] = row
	}
	return iouMatrix
}

// performMatching returns pairs {trackIndex, detectionIndex} with IoU not less than minIoU.
// Every track and every detection appear in at most one pair.
func performMatching(iouMatrix [][]float64, numDetections int, minIoU float64, algorithm MatchingAlgorithm) [][2]int {
	numTracks := len(iouMatrix)
	if numTracks == 0 || numDetections == 0 {
		return [][2]int{}
	}
	// Single row or column: the best pair is optimal for any algorithm
	if numTracks == 1 || numDetections == 1 || algorithm == MatchingAlgorithmGreedy {
		return performGreedyMatching(iouMatrix, numDetections, minIoU)
	}
	return performHungarianMatching(iouMatrix, numDetections, minIoU)
}

func performHungarianMatching(iouMatrix [][]float64, numDetections int, minIoU float64) [][2]int {
	numTracks := len(iouMatrix)
	paddedMatrix := iouMatrix
	if numTracks != numDetections {
		// Rectangular matrix - pad with zeros (lowest IoU) to make it square
		paddedSize := maxInt(numTracks, numDetections)
		paddedMatrix = make([][]float64, paddedSize)
		for i := 0; i < paddedSize; i++ {
			paddedMatrix[i] = make([]float64, paddedSize)
		}
		for i := 0; i < numTracks; i++ {
			copy(paddedMatrix[i], iouMatrix[i])
		}
	}
	assignmentsMap := hungarian.SolveMax(paddedMatrix)
	matches := make([][2]int, 0, minInt(numTracks, numDetections))
	usedDetections := make(map[int]struct{})
	for trackIndex := 0; trackIndex < numTracks; trackIndex++ {
		rowMap, ok := assignmentsMap[trackIndex]
		if !ok {
			continue
		}
		for detectionIndex := range rowMap {
			// Dummy columns and weak overlaps are not matches
			if !acceptable(iouMatrix, trackIndex, detectionIndex, numDetections, minIoU) {
				break
			}
			if _, ok := usedDetections[detectionIndex]; ok {
				break
			}
			usedDetections[detectionIndex] = struct{}{}
			matches = append(matches, [2]int{trackIndex, detectionIndex})
			break
		}
	}
	matches = fillLeftovers(iouMatrix, numDetections, minIoU, matches)
	matches = augmentMatching(iouMatrix, numDetections, minIoU, matches)
	// SolveMax may return a partial assignment even on small matrices
	if greedy := performGreedyMatching(iouMatrix, numDetections, minIoU); len(greedy) > len(matches) {
		return greedy
	}
	return matches
}

func acceptable(iouMatrix [][]float64, trackIndex, detectionIndex, numDetections int, minIoU float64) bool {
	if detectionIndex < 0 || detectionIndex >= numDetections {
		return false
	}
	iou := iouMatrix[trackIndex][detectionIndex]
	return iou >= minIoU && iou > 0
}

// fillLeftovers matches tracks and detections absent from matches greedily
func fillLeftovers(iouMatrix [][]float64, numDetections int, minIoU float64, matches [][2]int) [][2]int {
	usedTracks := make(map[int]struct{}, len(matches))
	usedDetections := make(map[int]struct{}, len(matches))
	for _, pair := range matches {
		usedTracks[pair[0]] = struct{}{}
		usedDetections[pair[1]] = struct{}{}
	}
	freeTracks := make([]int, 0)
	for i := range iouMatrix {
		if _, ok := usedTracks[i]; !ok {
			freeTracks = append(freeTracks, i)
		}
	}
	freeDetections := make([]int, 0)
	for j := 0; j < numDetections; j++ {
		if _, ok := usedDetections[j]; !ok {
			freeDetections = append(freeDetections, j)
		}
	}
	if len(freeTracks) == 0 || len(freeDetections) == 0 {
		return matches
	}
	sub := make([][]float64, len(freeTracks))
	for i, trackIndex := range freeTracks {
		sub[i] = make([]float64, len(freeDetections))
		for j, detectionIndex := range freeDetections {
			sub[i][j] = iouMatrix[trackIndex][detectionIndex]
		}
	}
	for _, pair := range performGreedyMatching(sub, len(freeDetections), minIoU) {
		matches = append(matches, [2]int{freeTracks[pair[0]], freeDetections[pair[1]]})
	}
	return matches
}

// augmentMatching grows matches along augmenting paths until no unmatched track can be matched.
// Candidate detections are tried in descending IoU order.
func augmentMatching(iouMatrix [][]float64, numDetections int, minIoU float64, matches [][2]int) [][2]int {
	numTracks := len(iouMatrix)
	trackTo := make([]int, numTracks)
	for i := range trackTo {
		trackTo[i] = -1
	}
	detectionTo := make([]int, numDetections)
	for j := range detectionTo {
		detectionTo[j] = -1
	}
	for _, pair := range matches {
		trackTo[pair[0]] = pair[1]
		detectionTo[pair[1]] = pair[0]
	}
	candidates := make([][]int, numTracks)
	for i := 0; i < numTracks; i++ {
		for j := 0; j < numDetections; j++ {
			if acceptable(iouMatrix, i, j, numDetections, minIoU) {
				candidates[i] = append(candidates[i], j)
			}
		}
		row := iouMatrix[i]
		sort.SliceStable(candidates[i], func(a, b int) bool {
			return row[candidates[i][a]] > row[candidates[i][b]]
		})
	}
	var visited []bool
	var augment func(trackIndex int) bool
	augment = func(trackIndex int) bool {
		for _, detectionIndex := range candidates[trackIndex] {
			if visited[detectionIndex] {
				continue
			}
			visited[detectionIndex] = true
			if detectionTo[detectionIndex] < 0 || augment(detectionTo[detectionIndex]) {
				trackTo[trackIndex] = detectionIndex
				detectionTo[detectionIndex] = trackIndex
				return true
			}
		}
		return false
	}
	for i := 0; i < numTracks; i++ {
		if trackTo[i] >= 0 {
			continue
		}
		visited = make([]bool, numDetections)
		augment(i)
	}
	out := make([][2]int, 0, len(matches))
	for i, j := range trackTo {
		if j >= 0 {
			out = append(out, [2]int{i, j})
		}
	}
	return out
}

func performGreedyMatching(iouMatrix [][]float64, numDetections int, minIoU float64) [][2]int {
	candidates := make(distanceHeap, 0)
	for i, row := range iouMatrix {
		for j := 0; j < numDetections; j++ {
			if row[j] >= minIoU && row[j] > 0 {
				candidates.Push(&matchCandidate{trackIdx: i, detectionIdx: j, distance: 1.0 - row[j]})
			}
		}
	}
	matches := make([][2]int, 0)
	usedTracks := make(map[int]struct{})
	usedDetections := make(map[int]struct{})
	for candidates.Len() > 0 {
		candidate := candidates.Pop()
		if _, ok := usedTracks[candidate.trackIdx]; ok {
			continue
		}
		if _, ok := usedDetections[candidate.detectionIdx]; ok {
			continue
		}
		usedTracks[candidate.trackIdx] = struct{}{}
		usedDetections[candidate.detectionIdx] = struct{}{}
		matches = append(matches, [2]int{candidate.trackIdx, candidate.detectionIdx})
	}
	return matches
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
