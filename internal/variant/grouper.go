package variant

// GroupFiles partitions a file list into scan groups keyed by canonical
// stem. Every input file lands in exactly one group; within a group, files
// keep the input order; groups are returned in order of first appearance.
// Pure function: no filesystem access.
func GroupFiles(files []string) []Group {
	index := make(map[string]int, len(files))
	var groups []Group

	for _, f := range files {
		v := Parse(f)
		i, ok := index[v.Stem]
		if !ok {
			i = len(groups)
			index[v.Stem] = i
			groups = append(groups, Group{Stem: v.Stem})
		}
		groups[i].Variants = append(groups[i].Variants, v)
	}
	return groups
}
