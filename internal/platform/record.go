package platform

// ChatworkMessage is one message from a Chatwork room, as returned by
// GET /rooms/{id}/messages. Room fields are filled in by the client since
// the API reports them per room, not per message.
type ChatworkMessage struct {
	MessageID  string          `json:"message_id"`
	Account    ChatworkAccount `json:"account"`
	Body       string          `json:"body"`
	SendTime   int64           `json:"send_time"`
	UpdateTime int64           `json:"update_time"`
	RoomID     int64           `json:"-"`
	RoomName   string          `json:"-"`
}

// ChatworkAccount identifies the author of a Chatwork message.
type ChatworkAccount struct {
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
}

func (m *ChatworkMessage) Source() Platform { return Chatwork }

// NotionPage is one page from the Notion search API, with its child blocks
// fetched separately by the client.
type NotionPage struct {
	ID             string                    `json:"id"`
	CreatedTime    string                    `json:"created_time"`
	LastEditedTime string                    `json:"last_edited_time"`
	URL            string                    `json:"url"`
	CreatedBy      NotionUser                `json:"created_by"`
	Properties     map[string]NotionProperty `json:"properties"`
	Blocks         []NotionBlock             `json:"-"`
}

// NotionUser identifies a Notion account.
type NotionUser struct {
	ID string `json:"id"`
}

// NotionProperty is one page property; only title and rich_text kinds carry
// searchable text.
type NotionProperty struct {
	Type     string           `json:"type"`
	Title    []NotionRichText `json:"title,omitempty"`
	RichText []NotionRichText `json:"rich_text,omitempty"`
}

// NotionRichText is one fragment of rich text.
type NotionRichText struct {
	PlainText string `json:"plain_text"`
}

// NotionBlock is one content block of a page. Only the kinds listed here are
// flattened into searchable text; anything else is skipped by normalization.
type NotionBlock struct {
	Type             string           `json:"type"`
	Paragraph        *NotionBlockText `json:"paragraph,omitempty"`
	Heading1         *NotionBlockText `json:"heading_1,omitempty"`
	Heading2         *NotionBlockText `json:"heading_2,omitempty"`
	Heading3         *NotionBlockText `json:"heading_3,omitempty"`
	BulletedListItem *NotionBlockText `json:"bulleted_list_item,omitempty"`
	NumberedListItem *NotionBlockText `json:"numbered_list_item,omitempty"`
	ToDo             *NotionToDo      `json:"to_do,omitempty"`
	Code             *NotionCode      `json:"code,omitempty"`
	Quote            *NotionBlockText `json:"quote,omitempty"`
}

// NotionBlockText holds the rich text of a simple block.
type NotionBlockText struct {
	RichText []NotionRichText `json:"rich_text"`
}

// NotionToDo is a checkbox block.
type NotionToDo struct {
	RichText []NotionRichText `json:"rich_text"`
	Checked  bool             `json:"checked"`
}

// NotionCode is a fenced code block.
type NotionCode struct {
	RichText []NotionRichText `json:"rich_text"`
	Language string           `json:"language"`
}

func (p *NotionPage) Source() Platform { return Notion }
