// Package content describes what a typist types.
//
// Content is written as a tree of nodes: Text is typed unit by unit, an
// Element is revealed as a whole, Backspace and Pause shape the rhythm, Paste
// reveals its leaves at once and Group sequences nodes. A Tree implements
// engine.Content and is compiled depth-first into the engine's instruction
// list at the start of every pass:
//
//	tree := content.Tree{
//	    content.Text("Hello wrold"),
//	    content.Pause(300 * time.Millisecond),
//	    content.Backspace(4),
//	    content.NewElement("hr", "", nil),
//	    content.Paste(content.Text("pasted at once")),
//	}
//
// Script files carry the same tree in document form as a list of NodeSpec
// values; FromSpec turns them into a Tree.
package content
