package graph

import "time"

// RootID is the well-known item id alias for a drive's root folder.
const RootID = "root"

// Item represents a drive item (file or folder).
// Fields are normalized from the Graph API response; callers never see raw API data.
type Item struct {
	ID           string
	Name         string
	DriveID      string
	ParentID     string
	WebURL       string
	Size         int64
	ETag         string
	IsFolder     bool
	MimeType     string
	QuickXorHash string // base64-encoded
}

// Site is a SharePoint site.
type Site struct {
	ID          string
	Name        string
	DisplayName string
	WebURL      string
}

// Drive is a document library exposed by a site.
type Drive struct {
	ID        string
	Name      string
	DriveType string
	WebURL    string
}

// UploadSession is a server-allocated resumable upload. UploadURL is
// pre-authenticated and ephemeral; never log it.
type UploadSession struct {
	UploadURL          string
	ExpirationTime     time.Time
	NextExpectedRanges []string
}
