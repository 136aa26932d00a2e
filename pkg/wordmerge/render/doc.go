// Package render holds the tree algorithms the merge engine is built on.
//
// Everything here works on an xml.Tree and knows nothing about directives or
// data, which keeps the algorithms testable on small hand-written parts.
//
//   - marker.go: field discovery (w:fldSimple and begin/separate/end
//     w:fldChar fields), marker removal and result text write-back
//   - range.go: removal of the content between two markers at any depths,
//     capture of sibling ranges and table rows for repetition
//   - blocks.go: content and container rules shared by the above
//   - fallback.go: markup-compatibility fallback removal
package render
