package render

import (
	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/xml"
)

// RemoveFallbacks replaces every markup-compatibility AlternateContent block
// with the content of its first Choice, dropping the Fallback branch. It
// returns the number of blocks replaced.
func RemoveFallbacks(t *xml.Tree) int {
	prefix := t.PrefixFor(xml.NamespaceMC)
	if prefix == "" {
		prefix = "mc"
	}
	name := prefix + ":AlternateContent"
	count := 0
	for _, ac := range t.FindAll(t.Root(), name) {
		if !t.Attached(ac) {
			continue
		}
		keep := t.FirstChildElement(ac, prefix+":Choice")
		if keep == xml.None {
			keep = t.FirstChildElement(ac, prefix+":Fallback")
		}
		if keep != xml.None {
			for _, c := range t.Children(keep) {
				t.InsertBefore(ac, c)
			}
		}
		t.Remove(ac)
		count++
	}
	return count
}
