// Package scoring turns annotated detections and their stack groups into
// a tidiness Report.
//
// The score starts at 100 and loses points per item (weight by label times
// multiplier by zone), per stack group, for crossing category thresholds,
// and for items bunched together. Suggestions are English sentences with
// the overall feedback first.
package scoring
