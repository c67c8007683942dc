package model

// AnnouncementRequest is the payload for a room-wide proctor announcement.
type AnnouncementRequest struct {
	Message string `json:"message" binding:"required,min=1,max=1000"`
}

// WarningRequest is the payload for a warning addressed to one student.
type WarningRequest struct {
	Message string `json:"message" binding:"required,min=1,max=1000"`
}

// ForceSubmitRequest optionally explains a proctor-forced submission.
type ForceSubmitRequest struct {
	Message string `json:"message" binding:"omitempty,max=1000"`
}
