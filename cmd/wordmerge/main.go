// Command wordmerge fills DOCX templates whose merge fields carry
// directives with JSON or YAML data.
//
// Usage:
//
//	# Render a template
//	wordmerge render invoice.docx invoice.json -o out.docx
//
//	# Re-render whenever the template or the data changes
//	wordmerge render invoice.docx invoice.yaml -o out.docx --watch
//
//	# List the available directive functions
//	wordmerge functions
package main

func main() {
	Execute()
}
