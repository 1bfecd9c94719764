package gerrit

// Wire types for the subset of Gerrit's REST API this tool consumes.
// Field shapes vary across Gerrit versions; everything optional is left as
// a zero value when absent and handled explicitly during conversion.

// accountInfo is Gerrit's AccountInfo entity.
type accountInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// approvalInfo is one entry of a label's "all" list.
type approvalInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Value int    `json:"value"`
	Date  string `json:"date"`
}

// labelInfo is Gerrit's LabelInfo entity with DETAILED_LABELS.
type labelInfo struct {
	All []approvalInfo `json:"all"`
}

// messageInfo is Gerrit's ChangeMessageInfo entity.
type messageInfo struct {
	Author  accountInfo `json:"author"`
	Date    string      `json:"date"`
	Message string      `json:"message"`
}

// commitInfo is the commit of a revision with CURRENT_COMMIT.
type commitInfo struct {
	Message string `json:"message"`
	Author  struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"author"`
}

// revisionInfo is Gerrit's RevisionInfo entity.
type revisionInfo struct {
	Commit commitInfo `json:"commit"`
}

// changeInfo is Gerrit's ChangeInfo entity as returned by the list
// endpoint with the options this client requests.
type changeInfo struct {
	ID              string                  `json:"id"`
	Number          int                     `json:"_number"`
	Project         string                  `json:"project"`
	Branch          string                  `json:"branch"`
	Status          string                  `json:"status"`
	Subject         string                  `json:"subject"`
	Created         string                  `json:"created"`
	Updated         string                  `json:"updated"`
	Owner           accountInfo             `json:"owner"`
	CurrentRevision string                  `json:"current_revision"`
	Revisions       map[string]revisionInfo `json:"revisions"`
	Labels          map[string]labelInfo    `json:"labels"`
	Messages        []messageInfo           `json:"messages"`

	// MoreChanges is set on the last change of a page when further
	// results exist.
	MoreChanges bool `json:"_more_changes"`
}

// commentInfo is Gerrit's CommentInfo entity from the comments endpoint.
type commentInfo struct {
	ID        string      `json:"id"`
	Line      int         `json:"line"`
	InReplyTo string      `json:"in_reply_to"`
	Message   string      `json:"message"`
	Updated   string      `json:"updated"`
	Author    accountInfo `json:"author"`
}

// fileInfo is Gerrit's FileInfo entity from the revision files endpoint.
// Status is absent for plain modifications.
type fileInfo struct {
	Status        string `json:"status"`
	LinesInserted int    `json:"lines_inserted"`
	LinesDeleted  int    `json:"lines_deleted"`
}
