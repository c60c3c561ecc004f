package ecephys

import "ecephys-nwb/nwb"

// RaggedFromMapping flattens a mapping of row key to variable-length
// sequence into a flat value buffer plus cumulative group boundaries,
// ordered by rowIDs: values[index[i-1]:index[i]] is the sequence for
// rowIDs[i]. Rows absent from the mapping become empty groups; mapping
// keys absent from rowIDs are ignored. The encoding depends only on
// rowIDs order, never on mapping iteration order.
func RaggedFromMapping(mapping map[int64][]float64, rowIDs []int64) (values []float64, index []int64) {
	index = make([]int64, len(rowIDs))
	total := 0
	for _, id := range rowIDs {
		total += len(mapping[id])
	}
	values = make([]float64, 0, total)
	for i, id := range rowIDs {
		values = append(values, mapping[id]...)
		index[i] = int64(len(values))
	}
	return values, index
}

// AddRaggedDataToTable encodes mapping against the table's row order and
// attaches it as a ragged column.
func AddRaggedDataToTable(t *nwb.Table, mapping map[int64][]float64, name, description string) error {
	values, index := RaggedFromMapping(mapping, t.IDs())
	return t.AddRaggedColumn(name, description, values, index)
}
