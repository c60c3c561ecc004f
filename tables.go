package ecephys

import (
	"ecephys-nwb/nwb"
)

// ChannelTableFromChannels builds a probewise channel table with global
// channel ids as a plain "id" column.
func ChannelTableFromChannels(channels []Channel) *nwb.Table {
	t := nwb.NewTable("channels")
	n := len(channels)
	ids := make([]any, n)
	probeIDs := make([]any, n)
	localIndices := make([]any, n)
	vertical := make([]any, n)
	horizontal := make([]any, n)
	valid := make([]any, n)
	for i, ch := range channels {
		ids[i] = ch.ID
		probeIDs[i] = ch.ProbeID
		localIndices[i] = ch.LocalIndex
		vertical[i] = ch.ProbeVerticalPosition
		horizontal[i] = ch.ProbeHorizontalPosition
		valid[i] = ch.ValidData
	}
	t.AddColumn("id", "", ids)
	t.AddColumn("probe_id", "", probeIDs)
	t.AddColumn("local_index", "", localIndices)
	t.AddColumn("probe_vertical_position", "", vertical)
	t.AddColumn("probe_horizontal_position", "", horizontal)
	t.AddColumn("valid_data", "", valid)
	return t
}

// UnitTableFromUnits builds a probewise unit table with global unit ids
// as a plain "id" column.
func UnitTableFromUnits(units []Unit) *nwb.Table {
	t := nwb.NewTable("units")
	n := len(units)
	ids := make([]any, n)
	localIndices := make([]any, n)
	for i, u := range units {
		ids[i] = u.ID
		localIndices[i] = u.LocalIndex
	}
	t.AddColumn("id", "", ids)
	t.AddColumn("local_index", "", localIndices)
	return t
}

// PrepareProbewiseChannelTable re-indexes a probewise channel table on
// its global channel ids and tags every row with the owning electrode
// group. Ids must arrive either as an "id" column or as an existing
// index named "id", never both.
func PrepareProbewiseChannelTable(channels *nwb.Table, electrodeGroup string) (*nwb.Table, error) {
	t := channels.Clone()
	hasColumn := t.HasColumn("id")
	indexIsID := t.IndexName() == "id"
	switch {
	case hasColumn && indexIsID:
		return nil, &ConflictingIdentifierError{Table: t.Name}
	case hasColumn:
		if err := t.SetIndexFromColumn("id"); err != nil {
			return nil, err
		}
	case !indexIsID:
		return nil, &MissingIdentifierError{Table: t.Name, Columns: t.ColumnNames()}
	}
	if err := t.AddConstantColumn("group", "", electrodeGroup); err != nil {
		return nil, err
	}
	return t, nil
}

// ConcatChannelTables concatenates per-probe channel tables into the
// master electrode table. Cells for columns a probe did not supply are
// filled with an empty string, not null.
func ConcatChannelTables(tables []*nwb.Table) (*nwb.Table, error) {
	return nwb.Concat("electrodes", tables, "")
}

// ConcatUnitTables concatenates per-probe unit tables and re-indexes on
// the global unit id column, which must be unique across all probes.
func ConcatUnitTables(tables []*nwb.Table) (*nwb.Table, error) {
	t, err := nwb.Concat("units", tables, "")
	if err != nil {
		return nil, err
	}
	if err := t.SetIndexFromColumn("id"); err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(t.IDs()))
	for _, id := range t.IDs() {
		if _, ok := seen[id]; ok {
			return nil, &DuplicateUnitError{ID: id}
		}
		seen[id] = struct{}{}
	}
	return t, nil
}
