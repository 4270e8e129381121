package schema

// Default returns the registry of built-in record types. Deployments extend
// this at startup before the registry is handed to the services.
func Default() *Registry {
	return NewRegistry(
		&RecordType{
			Name:      "demographics",
			Display:   "Demographics",
			Table:     "demographics",
			Scope:     ScopePatient,
			Singleton: true,
			Fields: []Field{
				{Name: "name", Kind: KindPlain},
				{Name: "hospital_number", Kind: KindPlain},
				{Name: "nhs_number", Kind: KindPlain},
				{Name: "date_of_birth", Kind: KindDate},
				{Name: "birth_place", Kind: KindHybrid, LookupList: "destination"},
			},
		},
		&RecordType{
			Name:      "location",
			Display:   "Location",
			Table:     "location",
			Scope:     ScopeEpisode,
			Singleton: true,
			Fields: []Field{
				{Name: "category", Kind: KindPlain},
				{Name: "hospital", Kind: KindPlain},
				{Name: "ward", Kind: KindPlain},
				{Name: "bed", Kind: KindPlain},
			},
		},
		&RecordType{
			Name:    "diagnosis",
			Display: "Diagnosis",
			Table:   "diagnosis",
			Scope:   ScopeEpisode,
			Fields: []Field{
				{Name: "condition", Kind: KindHybrid, LookupList: "condition"},
				{Name: "provisional", Kind: KindBoolean},
				{Name: "date_of_diagnosis", Kind: KindDate},
				{Name: "details", Kind: KindPlain},
			},
		},
		&RecordType{
			Name:    "treatment",
			Display: "Treatment",
			Table:   "treatment",
			Scope:   ScopeEpisode,
			Fields: []Field{
				{Name: "drug", Kind: KindHybrid, LookupList: "drug"},
				{Name: "dose", Kind: KindPlain},
				{Name: "route", Kind: KindHybrid, LookupList: "route"},
				{Name: "start_date", Kind: KindDate},
				{Name: "end_date", Kind: KindDate},
			},
		},
		&RecordType{
			Name:    "past_medical_history",
			Display: "Past Medical History",
			Table:   "past_medical_history",
			Scope:   ScopePatient,
			Fields: []Field{
				{Name: "condition", Kind: KindHybrid, LookupList: "condition"},
				{Name: "year", Kind: KindPlain},
			},
		},
		&RecordType{
			Name:    "allergy",
			Display: "Allergies",
			Table:   "allergy",
			Scope:   ScopePatient,
			Fields: []Field{
				{Name: "drug", Kind: KindHybrid, LookupList: "drug"},
				{Name: "provisional", Kind: KindBoolean},
				{Name: "details", Kind: KindPlain},
			},
		},
		// The tagging relation is queryable as the virtual "tags" type even
		// though it is not a conventional subrecord.
		&RecordType{
			Name:    "tags",
			Display: "Teams",
			Table:   "tagging",
			Scope:   ScopeEpisode,
			Virtual: true,
		},
	)
}
