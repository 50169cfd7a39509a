// Package stacks finds groups of same-label detections that are physically
// stacked (aligned boxes piled upwards, toppling risk) or overlapping
// (heaped boxes, harder to retrieve).
//
// Groups are recomputed from scratch on every call; nothing is persisted.
package stacks
