package render

import (
	"sort"

	"ghp-go/internal/ghp"
)

// Thread is one inline comment with its nested replies. Broken marks a
// reply whose parent comment is missing from the fetched set; such
// comments are promoted to top level rather than dropped.
type Thread struct {
	Comment ghp.Comment
	Broken  bool
	Replies []*Thread
}

// FileThreads groups the comment threads of a single file.
type FileThreads struct {
	File    string
	Threads []*Thread
}

// ThreadComments reconstructs the reply structure of a flat comment list.
// Output is deterministic: files sorted by path, top-level threads within
// a file ordered by line then timestamp then ID, replies ordered by
// timestamp then ID.
func ThreadComments(comments []ghp.Comment) []FileThreads {
	if len(comments) == 0 {
		return nil
	}

	nodes := make(map[string]*Thread, len(comments))
	ordered := make([]*Thread, 0, len(comments))
	for _, c := range comments {
		node := &Thread{Comment: c}
		ordered = append(ordered, node)
		if c.ID != "" {
			nodes[c.ID] = node
		}
	}

	byFile := make(map[string][]*Thread)
	for _, node := range ordered {
		parentID := node.Comment.InReplyTo
		if parentID != "" {
			if parent, ok := nodes[parentID]; ok && parent != node {
				parent.Replies = append(parent.Replies, node)
				continue
			}
			// Parent was deleted or never fetched; keep the reply
			// visible at top level and flag the gap.
			node.Broken = true
		}
		byFile[node.Comment.File] = append(byFile[node.Comment.File], node)
	}

	for _, node := range ordered {
		sortThreads(node.Replies)
	}

	files := make([]string, 0, len(byFile))
	for file := range byFile {
		files = append(files, file)
	}
	sort.Strings(files)

	out := make([]FileThreads, 0, len(files))
	for _, file := range files {
		roots := byFile[file]
		sort.SliceStable(roots, func(i, j int) bool {
			a, b := roots[i].Comment, roots[j].Comment
			if a.Line != b.Line {
				return a.Line < b.Line
			}
			if !a.Written.Equal(b.Written) {
				return a.Written.Before(b.Written)
			}
			return a.ID < b.ID
		})
		out = append(out, FileThreads{File: file, Threads: roots})
	}
	return out
}

func sortThreads(threads []*Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		a, b := threads[i].Comment, threads[j].Comment
		if !a.Written.Equal(b.Written) {
			return a.Written.Before(b.Written)
		}
		return a.ID < b.ID
	})
}
