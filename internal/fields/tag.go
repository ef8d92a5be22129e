package fields

const (
	TagSize       = 24
	TargetSize    = 16
	SimpleTagSize = 16
)

var (
	TagNTargets    = Field{Name: "nTargets", Offset: 0, Kind: U32}
	TagTargets     = Field{Name: "Targets", Offset: 8, Kind: Ptr}
	TagNSimpleTags = Field{Name: "nSimpleTags", Offset: 12, Kind: U32}
	TagSimpleTags  = Field{Name: "SimpleTags", Offset: 20, Kind: Ptr}

	TargetUID  = Field{Name: "UID", Offset: 0, Kind: U64}
	TargetType = Field{Name: "Type", Offset: 8, Kind: U32}

	SimpleTagName     = Field{Name: "Name", Offset: 0, Kind: Ptr}
	SimpleTagValue    = Field{Name: "Value", Offset: 4, Kind: Ptr}
	SimpleTagLanguage = Field{Name: "Language", Offset: 8, Kind: Chars, Len: 4}
	SimpleTagDefault  = Field{Name: "Default", Offset: 12, Kind: Bit, Bit: 0}
)

var (
	TagPlain    = Group{Name: "tag", Fields: []Field{TagNTargets, TagTargets, TagNSimpleTags, TagSimpleTags}}
	TargetPlain = Group{Name: "target", Fields: []Field{TargetUID, TargetType}}

	SimpleTagPlain = Group{Name: "simple-tag", Fields: []Field{
		SimpleTagName, SimpleTagValue, SimpleTagLanguage,
	}}

	SimpleTagFlags = Group{Name: "simple-tag-flags", Fields: []Field{SimpleTagDefault}}
)
