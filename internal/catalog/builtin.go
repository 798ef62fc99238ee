package catalog

// Kind names of the built-in shop-floor record types.
const (
	KindCupolaHolderLog  = "cupola_holder_log"
	KindMeltingLogsheet  = "melting_logsheet"
	KindSandTestingNote  = "sand_testing_note"
	KindDMMSettingParams = "dmm_setting_parameters"
	KindDisamaticReport  = "disamatic_production_report"
	KindMouldingReport   = "moulding_report"
)

// Builtin returns the catalog of the six standard record kinds. Site-specific
// kinds can be layered on top with LoadOverlay.
func Builtin() *Catalog {
	c := New()
	for _, k := range []*KindSchema{
		cupolaHolderLog(),
		meltingLogsheet(),
		sandTestingNote(),
		dmmSettingParameters(),
		disamaticProductionReport(),
		mouldingReport(),
	} {
		// Built-in schemas are validated by the package tests; a registration
		// failure here is a programming error.
		if err := c.Register(k); err != nil {
			panic(err)
		}
	}
	return c
}

// cupolaHolderLog: one record per holder per shift. The primary section pins
// the crew; everything measured on the holder afterwards is a free-form set of
// first-writer-wins readings.
func cupolaHolderLog() *KindSchema {
	return &KindSchema{
		Name: KindCupolaHolderLog,
		KeyFields: []KeyField{
			{Name: "date", Date: true},
			{Name: "shift"},
			{Name: "holder_number"},
		},
		Sections: []SectionSchema{
			{
				Name:    "shift_details",
				Primary: true,
				Fields: []FieldSchema{
					{Path: "incharge", Type: TypeString},
					{Path: "members", Type: TypeList, Policy: AppendOnly},
				},
			},
			{
				Name: "readings",
				Fields: []FieldSchema{
					{Path: "cpc", Type: TypeNumber},
					{Path: "silicon", Type: TypeNumber},
					{Path: "manganese", Type: TypeNumber},
					{Path: "metal_temperature", Type: TypeNumber},
					{Path: "holding_time_minutes", Type: TypeNumber},
					{Path: "extra.*"},
				},
			},
		},
	}
}

// meltingLogsheet: one record per shift, filled table by table as heats are
// tapped. Tables hold per-heat subtrees keyed by heat number.
func meltingLogsheet() *KindSchema {
	tables := []SectionSchema{}
	for _, name := range []string{"table_1", "table_2", "table_3", "table_4", "table_5"} {
		tables = append(tables, SectionSchema{
			Name: name,
			Fields: []FieldSchema{
				{Path: "heats.*"},
			},
		})
	}
	return &KindSchema{
		Name: KindMeltingLogsheet,
		KeyFields: []KeyField{
			{Name: "date", Date: true},
			{Name: "shift"},
		},
		Sections: append([]SectionSchema{
			{
				Name:    "shift_details",
				Primary: true,
				Fields: []FieldSchema{
					{Path: "furnace_incharge", Type: TypeString},
					{Path: "shift_supervisor", Type: TypeString},
					{Path: "members", Type: TypeList, Policy: AppendOnly},
				},
			},
		}, tables...),
	}
}

// sandTestingNote: one record per shift, six independent sub-forms.
func sandTestingNote() *KindSchema {
	return &KindSchema{
		Name: KindSandTestingNote,
		KeyFields: []KeyField{
			{Name: "date", Date: true},
			{Name: "shift"},
		},
		Sections: []SectionSchema{
			{
				Name:    "shift_details",
				Primary: true,
				Fields: []FieldSchema{
					{Path: "sand_plant_operator", Type: TypeString},
					{Path: "members", Type: TypeList, Policy: AppendOnly},
				},
			},
			{
				Name: "clay_parameters",
				Fields: []FieldSchema{
					{Path: "total_clay", Type: TypeNumber},
					{Path: "active_clay", Type: TypeNumber},
					{Path: "dead_clay", Type: TypeNumber},
					{Path: "vcm", Type: TypeNumber},
					{Path: "loi", Type: TypeNumber},
				},
			},
			{
				Name: "sieve_testing",
				Fields: []FieldSchema{
					{Path: "afs_number", Type: TypeNumber},
					{Path: "retained.*", Type: TypeNumber},
					{Path: "pan", Type: TypeNumber},
				},
			},
			{
				Name: "test_parameters",
				Fields: []FieldSchema{
					{Path: "permeability", Type: TypeNumber},
					{Path: "gcs", Type: TypeNumber},
					{Path: "moisture", Type: TypeNumber},
					{Path: "compactability", Type: TypeNumber},
					{Path: "wet_tensile_strength", Type: TypeNumber},
				},
			},
			{
				Name: "additional_data",
				Fields: []FieldSchema{
					{Path: "new_sand_added_kg", Type: TypeNumber},
					{Path: "bentonite_added_kg", Type: TypeNumber},
					{Path: "coal_dust_added_kg", Type: TypeNumber},
					{Path: "return_sand_temperature", Type: TypeNumber},
				},
			},
			{
				Name: "remarks",
				Fields: []FieldSchema{
					{Path: "lab_remarks", Type: TypeString},
					{Path: "reviewed", Type: TypeBool, Policy: AlwaysOverwrite},
					{Path: "reviewed_by", Type: TypeString, Policy: AlwaysOverwrite},
				},
			},
		},
	}
}

// dmmSettingParameters: one record per machine per day; each shift appends its
// own parameter entries.
func dmmSettingParameters() *KindSchema {
	shifts := []SectionSchema{}
	for _, name := range []string{"shift_1_parameters", "shift_2_parameters", "shift_3_parameters"} {
		shifts = append(shifts, SectionSchema{
			Name: name,
			Fields: []FieldSchema{
				{Path: "entries", Type: TypeList, Policy: AppendOnly},
				{Path: "set_by", Type: TypeString},
			},
		})
	}
	return &KindSchema{
		Name: KindDMMSettingParams,
		KeyFields: []KeyField{
			{Name: "date", Date: true},
			{Name: "machine"},
		},
		Sections: append([]SectionSchema{
			{
				Name:    "machine_details",
				Primary: true,
				Fields: []FieldSchema{
					{Path: "operator", Type: TypeString},
					{Path: "pattern_code", Type: TypeString},
				},
			},
		}, shifts...),
	}
}

// disamaticProductionReport: one record per machine per shift. Delay and event
// logs only ever grow; the next-shift plan is a single evolving status and may
// be rewritten until the shift ends.
func disamaticProductionReport() *KindSchema {
	return &KindSchema{
		Name: KindDisamaticReport,
		KeyFields: []KeyField{
			{Name: "date", Date: true},
			{Name: "shift"},
			{Name: "machine"},
		},
		Sections: []SectionSchema{
			{
				Name:    "shift_details",
				Primary: true,
				Fields: []FieldSchema{
					{Path: "supervisor", Type: TypeString},
					{Path: "operator", Type: TypeString},
					{Path: "members", Type: TypeList, Policy: AppendOnly},
				},
			},
			{
				Name: "production",
				Fields: []FieldSchema{
					{Path: "pattern_code", Type: TypeString},
					{Path: "moulds_poured", Type: TypeNumber},
					{Path: "moulds_produced", Type: TypeNumber},
					{Path: "mould_rate_per_hour", Type: TypeNumber},
					{Path: "pouring_weight_kg", Type: TypeNumber},
				},
			},
			{
				Name: "next_shift_plan",
				Fields: []FieldSchema{
					{Path: "pattern_code", Type: TypeString, Policy: AlwaysOverwrite},
					{Path: "planned_moulds", Type: TypeNumber, Policy: AlwaysOverwrite},
					{Path: "notes", Type: TypeString, Policy: AlwaysOverwrite},
				},
			},
			{
				Name: "delays",
				Fields: []FieldSchema{
					{Path: "entries", Type: TypeList, Policy: AppendOnly},
				},
			},
			{
				Name: "mould_hardness",
				Fields: []FieldSchema{
					{Path: "readings.*", Type: TypeNumber},
				},
			},
			{
				Name: "pattern_temperature",
				Fields: []FieldSchema{
					{Path: "readings.*", Type: TypeNumber},
				},
			},
			{
				Name: "events",
				Fields: []FieldSchema{
					{Path: "entries", Type: TypeList, Policy: AppendOnly},
				},
			},
		},
	}
}

// mouldingReport: one record per shift on the hand-moulding line.
func mouldingReport() *KindSchema {
	return &KindSchema{
		Name: KindMouldingReport,
		KeyFields: []KeyField{
			{Name: "date", Date: true},
			{Name: "shift"},
		},
		Sections: []SectionSchema{
			{
				Name:    "shift_details",
				Primary: true,
				Fields: []FieldSchema{
					{Path: "incharge", Type: TypeString},
					{Path: "members", Type: TypeList, Policy: AppendOnly},
				},
			},
			{
				Name: "production",
				Fields: []FieldSchema{
					{Path: "box_size", Type: TypeString},
					{Path: "moulds_prepared", Type: TypeNumber},
					{Path: "moulds_poured", Type: TypeNumber},
					{Path: "castings.*", Type: TypeNumber},
				},
			},
			{
				Name: "rejections",
				Fields: []FieldSchema{
					{Path: "reasons.*", Type: TypeNumber},
					{Path: "total_rejected", Type: TypeNumber},
				},
			},
			{
				Name: "remarks",
				Fields: []FieldSchema{
					{Path: "shift_remarks", Type: TypeString},
					{Path: "reviewed", Type: TypeBool, Policy: AlwaysOverwrite},
				},
			},
		},
	}
}
