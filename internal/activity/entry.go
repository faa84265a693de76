package activity

// Entry is one indexed screenshot. Filename is the primary key; the optional
// groups are nil when that aspect of the screen was not detected.
type Entry struct {
	// Filename is the screenshot file name, unique across the index
	Filename string `json:"filename"`

	// Timestamp is the capture time in epoch milliseconds
	Timestamp int64 `json:"timestamp"`

	// Date is the local capture date, YYYY-MM-DD
	Date string `json:"date"`

	// Time is the local capture time, HH:MM:SS
	Time string `json:"time"`

	App           *App           `json:"app,omitempty"`
	Browser       *Browser       `json:"browser,omitempty"`
	Video         *Video         `json:"video,omitempty"`
	IDE           *IDE           `json:"ide,omitempty"`
	Terminal      *Terminal      `json:"terminal,omitempty"`
	Communication *Communication `json:"communication,omitempty"`
	Document      *Document      `json:"document,omitempty"`

	// Activity is a short searchable description of what the user was doing
	Activity string `json:"activity"`

	Summary string   `json:"summary,omitempty"`
	Details string   `json:"details,omitempty"`
	Tags    []string `json:"tags,omitempty"`

	// IsContinuation marks the same activity as the previous entry
	IsContinuation bool `json:"isContinuation"`
}

type App struct {
	Name        string `json:"name,omitempty"`
	WindowTitle string `json:"windowTitle,omitempty"`
	Category    string `json:"category,omitempty"`
}

type Browser struct {
	URL       string `json:"url,omitempty"`
	Domain    string `json:"domain,omitempty"`
	PageTitle string `json:"pageTitle,omitempty"`
	PageType  string `json:"pageType,omitempty"`
}

type Video struct {
	Platform string `json:"platform,omitempty"`
	Title    string `json:"title,omitempty"`
	Channel  string `json:"channel,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type IDE struct {
	Name        string `json:"name,omitempty"`
	CurrentFile string `json:"currentFile,omitempty"`
	FilePath    string `json:"filePath,omitempty"`
	Language    string `json:"language,omitempty"`
	ProjectName string `json:"projectName,omitempty"`
	GitBranch   string `json:"gitBranch,omitempty"`
}

type Terminal struct {
	Cwd         string `json:"cwd,omitempty"`
	LastCommand string `json:"lastCommand,omitempty"`
	SSHHost     string `json:"sshHost,omitempty"`
}

type Communication struct {
	App       string `json:"app,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Recipient string `json:"recipient,omitempty"`
}

type Document struct {
	App           string `json:"app,omitempty"`
	DocumentTitle string `json:"documentTitle,omitempty"`
}

func (g *App) empty() bool { return g == nil || g.Name == "" && g.WindowTitle == "" && g.Category == "" }
func (g *Browser) empty() bool {
	return g == nil || g.URL == "" && g.Domain == "" && g.PageTitle == "" && g.PageType == ""
}
func (g *Video) empty() bool {
	return g == nil || g.Platform == "" && g.Title == "" && g.Channel == "" && g.Duration == ""
}
func (g *IDE) empty() bool {
	return g == nil || g.Name == "" && g.CurrentFile == "" && g.FilePath == "" &&
		g.Language == "" && g.ProjectName == "" && g.GitBranch == ""
}
func (g *Terminal) empty() bool {
	return g == nil || g.Cwd == "" && g.LastCommand == "" && g.SSHHost == ""
}
func (g *Communication) empty() bool {
	return g == nil || g.App == "" && g.Channel == "" && g.Recipient == ""
}
func (g *Document) empty() bool { return g == nil || g.App == "" && g.DocumentTitle == "" }

// Prune drops every optional group whose fields are all empty and trims
// blank tags. It mutates e and returns it.
func (e *Entry) Prune() *Entry {
	if e.App.empty() {
		e.App = nil
	}
	if e.Browser.empty() {
		e.Browser = nil
	}
	if e.Video.empty() {
		e.Video = nil
	}
	if e.IDE.empty() {
		e.IDE = nil
	}
	if e.Terminal.empty() {
		e.Terminal = nil
	}
	if e.Communication.empty() {
		e.Communication = nil
	}
	if e.Document.empty() {
		e.Document = nil
	}

	tags := e.Tags[:0]
	for _, t := range e.Tags {
		if t = Normalize(t); t != "" {
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		tags = nil
	}
	e.Tags = tags
	return e
}

// AppName returns the detected app name or "".
func (e *Entry) AppName() string {
	if e.App == nil {
		return ""
	}
	return e.App.Name
}

// AppCategory returns the detected app category or "".
func (e *Entry) AppCategory() string {
	if e.App == nil {
		return ""
	}
	return e.App.Category
}

// Domain returns the browser domain or "".
func (e *Entry) Domain() string {
	if e.Browser == nil {
		return ""
	}
	return e.Browser.Domain
}

// Title returns the most specific title on screen.
func (e *Entry) Title() string {
	switch {
	case e.Video != nil && e.Video.Title != "":
		return e.Video.Title
	case e.Browser != nil && e.Browser.PageTitle != "":
		return e.Browser.PageTitle
	case e.Document != nil && e.Document.DocumentTitle != "":
		return e.Document.DocumentTitle
	case e.IDE != nil && e.IDE.CurrentFile != "":
		return e.IDE.CurrentFile
	case e.App != nil:
		return e.App.WindowTitle
	}
	return ""
}
