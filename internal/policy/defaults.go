package policy

// DefaultVersion identifies the built-in policy table
const DefaultVersion = "2025.1"

// Default returns the built-in MAN Truck & Bus grading policy
func Default() Table {
	return Table{
		Version: DefaultVersion,
		Language: LanguagePolicy{
			Diacritics: "äöüÄÖÜß",
			Keywords: []string{
				"und", "der", "die", "das", "ist", "sind", "wird", "werden",
				"bei", "mit", "für", "auf", "ein", "eine", "einer", "eines",
				"nicht", "auch", "oder", "aber", "wenn", "kann", "können",
				"fahrzeug", "lkw", "truck", "motor", "achse",
			},
			KeywordThreshold: 3,
		},
		Competitor: CompetitorPolicy{
			Brands: []Brand{
				{Name: "daimler", Keywords: []string{"daimler", "mercedes", "actros", "arocs", "atego", "econic"}},
				{Name: "volvo", Keywords: []string{"volvo trucks", "volvo fh", "volvo fm", "volvo fmx", "volvo fe"}},
				{Name: "scania", Keywords: []string{"scania", "scania r", "scania s", "scania g", "scania p"}},
				{Name: "daf", Keywords: []string{"daf", "daf xf", "daf xg", "daf cf", "daf lf"}},
				{Name: "iveco", Keywords: []string{"iveco", "stralis", "s-way", "eurocargo", "daily"}},
				{Name: "renault", Keywords: []string{"renault trucks", "renault t", "renault c", "renault k", "renault d"}},
			},
			EndorsementCues: []string{
				"empfehl", "besser", "überlegen", "vorteil", "gut", "hervorragend",
				"alternativ", "auch möglich", "in betracht", "option",
			},
			Window: 50,
		},
		Tone: TonePolicy{
			InformalLexicon: []string{
				"lol", "haha", "omg", "wtf", "krass", "geil", "mega", "voll",
				"echt jetzt", "alter", "digga", "bro", "dude", "yo", "hey",
				"cool", "nice", "super geil", "hammer",
			},
			InformalMatch: MatchSubstring,
			EmojiRanges: []RuneRange{
				{Lo: 0x1F600, Hi: 0x1F64F}, // emoticons
				{Lo: 0x1F300, Hi: 0x1F5FF}, // symbols & pictographs
				{Lo: 0x1F680, Hi: 0x1F6FF}, // transport & map symbols
				{Lo: 0x1F1E0, Hi: 0x1F1FF}, // flags
				{Lo: 0x2702, Hi: 0x27B0},   // dingbats
				{Lo: 0x24C2, Hi: 0x1F251},  // enclosed characters
			},
			MaxExclamations: 3,
			CapsMinLength:   4,
			CapsLetters:     "ÄÖÜ",
			AllowedCaps:     []string{"VIN", "WMI", "LKW", "MAN", "TGX", "TGS", "TGM", "TGL", "EURO", "ISO", "DIN"},
			PassThreshold:   0.7,
		},
		Technical: TechnicalFacts{
			VINLength:            17,
			WMILength:            3,
			ForbiddenVINChars:    "IOQ",
			ManufacturerWMIs:     []string{"WMA", "WMH", "XMC"},
			EmissionLabels:       []string{"Euro 5", "Euro 6", "Euro 6c", "Euro 6d", "Euro 6e"},
			FutureEmissionLabels: []string{"euro 7", "euro 8"},
			Models:               []string{"TGL", "TGM", "TGS", "TGX", "eTGM", "eTGS", "eTGX", "Lion's City"},
			AxleConfigs:          []string{"4x2", "4x4", "6x2", "6x4", "8x4", "8x8"},
			VINLengthUnits:       []string{"stellig", "zeichen", "character"},
			WMILengthUnits:       []string{"stellig", "zeichen", "stellen"},
			ClaimLookahead:       60,
		},
		Validity: ValidityPolicy{
			InvalidMarker:  "Valid: false",
			ValidMarker:    "Valid: true",
			InvalidComment: "Automatically flagged: Output contains validation errors.",
			ValidComment:   "Automatically approved: Output is valid.",
		},
	}
}
