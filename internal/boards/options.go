package boards

// Scope says where an option is declared. Board-scope options may be
// overridden per board; site-scope options are global constants.
type Scope int

const (
	// ScopeSite marks a sitewide option.
	ScopeSite Scope = iota
	// ScopeBoard marks a per-board option.
	ScopeBoard
)

// DataType enumerates the typed value kinds an option can hold.
type DataType int

const (
	// TypeBoolean holds on/off values.
	TypeBoolean DataType = iota
	// TypeInteger holds signed integers.
	TypeInteger
	// TypeUnsignedInteger holds non-negative integers.
	TypeUnsignedInteger
	// TypeString holds free text.
	TypeString
)

// Option declares one configuration option: its scope, type, default and
// write-time validation rules.
type Option struct {
	Name       string
	Scope      Scope
	DataType   DataType
	Default    string
	HasDefault bool
	Rules      []Rule
}

// Option names referenced from code.
const (
	OptAttachmentFilesize = "attachmentFilesize"
	OptBanMaxLength       = "banMaxLength"
	OptBanSubnets         = "banSubnets"
	OptBoardUriBanned     = "boardUriBanned"
	OptPostFloodTime      = "postFloodTime"
	OptCaptchaEnabled     = "captchaEnabled"
	OptPostAttachmentsMax = "postAttachmentsMax"
	OptPostMaxLength      = "postMaxLength"
	OptPostMinLength      = "postMinLength"
	OptPostsPerPage       = "postsPerPage"
)

// Options is the declared option catalog, loaded once and read-only.
func Options() map[string]Option {
	list := []Option{
		// Site scope.
		{Name: OptAttachmentFilesize, Scope: ScopeSite, DataType: TypeUnsignedInteger, Default: "1024", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}}},
		{Name: "attachmentThumbnailSize", Scope: ScopeSite, DataType: TypeUnsignedInteger, Default: "250", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: 50}}},
		{Name: OptBanMaxLength, Scope: ScopeSite, DataType: TypeInteger, Default: "30", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: -1}}},
		{Name: OptBanSubnets, Scope: ScopeSite, DataType: TypeBoolean, Default: "1", HasDefault: true,
			Rules: []Rule{{Kind: RuleBoolean}}},
		{Name: "boardCreateMax", Scope: ScopeSite, DataType: TypeUnsignedInteger, Default: "0", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}}},
		{Name: "boardCreateTimer", Scope: ScopeSite, DataType: TypeUnsignedInteger, Default: "15", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}}},
		{Name: "boardListShow", Scope: ScopeSite, DataType: TypeBoolean, Default: "1", HasDefault: true,
			Rules: []Rule{{Kind: RuleBoolean}}},
		{Name: OptBoardUriBanned, Scope: ScopeSite, DataType: TypeString, Default: "", HasDefault: true},
		{Name: OptPostFloodTime, Scope: ScopeSite, DataType: TypeUnsignedInteger, Default: "30", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}}},
		{Name: "globalReportText", Scope: ScopeSite, DataType: TypeString, Default: "", HasDefault: true,
			Rules: []Rule{{Kind: RuleMin, Limit: 0}, {Kind: RuleMax, Limit: 65535}}},

		// Board scope.
		{Name: "boardReportText", Scope: ScopeBoard, DataType: TypeString, Default: "", HasDefault: true,
			Rules: []Rule{{Kind: RuleMin, Limit: 0}, {Kind: RuleMax, Limit: 65535}}},
		{Name: "boardSidebarText", Scope: ScopeBoard, DataType: TypeString, Default: "", HasDefault: true,
			Rules: []Rule{{Kind: RuleMin, Limit: 0}, {Kind: RuleMax, Limit: 65535}}},
		{Name: OptCaptchaEnabled, Scope: ScopeBoard, DataType: TypeBoolean, Default: "0", HasDefault: true,
			Rules: []Rule{{Kind: RuleBoolean}}},
		{Name: OptPostAttachmentsMax, Scope: ScopeBoard, DataType: TypeUnsignedInteger, Default: "5", HasDefault: true,
			Rules: []Rule{{Kind: RuleRequired}, {Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}, {Kind: RuleMax, Limit: 10}}},
		{Name: OptPostMaxLength, Scope: ScopeBoard, DataType: TypeUnsignedInteger,
			Rules: []Rule{{Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}, {Kind: RuleMax, Limit: 65534}, {Kind: RuleGreaterThan, Other: OptPostMinLength}}},
		{Name: OptPostMinLength, Scope: ScopeBoard, DataType: TypeUnsignedInteger,
			Rules: []Rule{{Kind: RuleInteger}, {Kind: RuleMin, Limit: 0}, {Kind: RuleMax, Limit: 65534}}},
		{Name: OptPostsPerPage, Scope: ScopeBoard, DataType: TypeUnsignedInteger, Default: "10", HasDefault: true,
			Rules: []Rule{{Kind: RuleInteger}, {Kind: RuleMin, Limit: 5}, {Kind: RuleMax, Limit: 20}}},
		{Name: "postsThreadId", Scope: ScopeBoard, DataType: TypeBoolean, Default: "0", HasDefault: true,
			Rules: []Rule{{Kind: RuleBoolean}}},
	}

	out := make(map[string]Option, len(list))
	for _, opt := range list {
		out[opt.Name] = opt
	}
	return out
}
