// Package tidy owns the shared data model of the tidiness analytics engine.
//
// Responsibilities: detection records, bounding-box geometry (IoU and the
// asymmetric overlap ratio), zone labels, stack groups and reports.
// Key types: Detection, BBox, Zone, StackGroup, Report.
//
// Dependency rule: subpackages (zones, stacks, tracks, scoring) may depend on
// tidy, never the reverse. No SQL/database code is allowed in this package.
package tidy
