package extract

import "strings"

const (
	corpusKey = "corpus"
	koInfoKey = "ko_info"
	koTextKey = "ko_txt"
)

// KoText collects every non-blank corpus -> ko_info -> ko_txt value of a
// document in order and joins them with a newline. A root sequence is
// treated as a list of documents. Entries of the wrong shape are skipped.
func KoText(root *Node) string {
	var parts []string
	if root == nil {
		return ""
	}
	switch root.Kind {
	case KindRecord:
		parts = appendCorpus(parts, root)
	case KindSequence:
		for _, doc := range root.Items {
			parts = appendCorpus(parts, doc)
		}
	}
	return strings.Join(parts, "\n")
}

func appendCorpus(parts []string, doc *Node) []string {
	corpus, ok := doc.Get(corpusKey)
	if !ok {
		return parts
	}
	switch corpus.Kind {
	case KindRecord:
		parts = appendKoInfo(parts, corpus)
	case KindSequence:
		for _, entry := range corpus.Items {
			parts = appendKoInfo(parts, entry)
		}
	}
	return parts
}

func appendKoInfo(parts []string, entry *Node) []string {
	info, ok := entry.Get(koInfoKey)
	if !ok {
		return parts
	}
	switch info.Kind {
	case KindRecord:
		parts = appendKoText(parts, info)
	case KindSequence:
		for _, record := range info.Items {
			parts = appendKoText(parts, record)
		}
	}
	return parts
}

func appendKoText(parts []string, record *Node) []string {
	v, ok := record.Get(koTextKey)
	if !ok {
		return parts
	}
	s, ok := v.Text()
	if !ok {
		return parts
	}
	if s = strings.TrimSpace(s); s != "" {
		parts = append(parts, s)
	}
	return parts
}
