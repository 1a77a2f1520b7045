package data

// Status is a student session's current state as seen by proctors.
type Status string

const (
	StatusOnline   Status = "ONLINE"
	StatusInExam   Status = "IN_EXAM"
	StatusExamDone Status = "EXAM_DONE"
	StatusOffline  Status = "OFFLINE"
)

// ViolationKind is the closed set of exam-integrity violations. The string
// values are the wire tokens exchanged with clients and dashboards.
type ViolationKind string

const (
	KindTabHidden      ViolationKind = "TAB_HIDDEN"
	KindBlurred        ViolationKind = "BLURRED"
	KindSplitScreen    ViolationKind = "SPLIT_SCREEN"
	KindFloatingWindow ViolationKind = "FLOATING_WINDOW"
	KindGeofenceExit   ViolationKind = "GEOFENCE_EXIT"
	KindMotionAnomaly  ViolationKind = "MOTION_ANOMALY"
)

// Kinds lists every violation kind, in a stable order.
var Kinds = []ViolationKind{
	KindTabHidden,
	KindBlurred,
	KindSplitScreen,
	KindFloatingWindow,
	KindGeofenceExit,
	KindMotionAnomaly,
}

func (k ViolationKind) Valid() bool {
	switch k {
	case KindTabHidden, KindBlurred, KindSplitScreen, KindFloatingWindow,
		KindGeofenceExit, KindMotionAnomaly:
		return true
	}
	return false
}

// ViolationEvent is the immutable record a student client reports when a
// violation is confirmed. Timestamp is epoch milliseconds.
type ViolationEvent struct {
	UjianID       string        `json:"ujianId"`
	SiswaDetailID string        `json:"siswaDetailId"`
	Kind          ViolationKind `json:"type"`
	Timestamp     int64         `json:"timestamp"`
}

// Kelas identifies a school class by level and track (e.g. "XII" / "IPA").
type Kelas struct {
	Tingkat string `json:"tingkat"`
	Jurusan string `json:"jurusan"`
}

// StudentStatus is one entry of the monitoring snapshot pushed to
// proctor dashboards.
type StudentStatus struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	NIS    string `json:"nis"`
	Kelas  Kelas  `json:"kelas"`
	Status Status `json:"status"`
}
