// Package zones assigns each detection the semantic zone it occupies.
//
// Segmentation masks are preferred: the box centre is tested against the
// bed, desk, furniture and floor masks in that priority order. Without
// masks the classifier falls back to geometric heuristics over the other
// detections in the same image.
package zones
