package entity

// FolderMimeType identifies folders in the remote store
const FolderMimeType = "application/vnd.google-apps.folder"

// StoredFile is the remote store's answer to an upload
type StoredFile struct {
	ID          string `json:"id"`
	WebViewLink string `json:"web_view_link"`
}

// ArchivalLocation describes where an invoice file was archived
type ArchivalLocation struct {
	FileID           string `json:"file_id"`
	FileName         string `json:"file_name"`
	WebViewLink      string `json:"web_view_link"`
	FolderPath       string `json:"folder_path"`
	TerminalFolderID string `json:"terminal_folder_id"`
}

// FullPath returns the slash-joined folder path including the file name
func (l ArchivalLocation) FullPath() string {
	if l.FolderPath == "" {
		return l.FileName
	}
	return l.FolderPath + "/" + l.FileName
}
