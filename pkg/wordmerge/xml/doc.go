// Package xml provides the node tree the engine edits DOCX parts with.
//
// A Tree is an arena: every node lives in one slice and refers to its
// parent, first and last child, and previous and next sibling by NodeID.
// Cloning, splicing and removing subtrees are index updates, and ids stay
// valid after a node is detached, so callers can hold on to field markers
// while the surrounding content is rewritten.
//
// Parsing uses raw tokens, so prefixes are never resolved and are written
// back exactly as they were read. Element and attribute names are the
// qualified strings that appear in the part ("w:p", "r:embed").
//
//	t, err := xml.ParseBytes(documentXML)
//	body := t.Find(t.DocumentElement(), "w:body")
//	for _, p := range t.ChildElements(body, "w:p") {
//	    fmt.Println(t.Text(p))
//	}
package xml
