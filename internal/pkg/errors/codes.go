package errors

// Машинные коды ошибок, которые видит клиент в поле "code".
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeNotFound       = "NOT_FOUND"
	CodeInvalidCreds   = "INVALID_CREDENTIALS"
	CodeEmailTaken     = "EMAIL_TAKEN"
	CodeUsernameTaken  = "USERNAME_TAKEN"
	CodeLevelOverlap   = "LEVEL_OVERLAP"
	CodeCategoryExists = "CATEGORY_EXISTS"

	CodeChallengeNotFound     = "CHALLENGE_NOT_FOUND"
	CodeChallengeInactive     = "CHALLENGE_INACTIVE"
	CodeChallengeNotStarted   = "CHALLENGE_NOT_STARTED"
	CodeChallengeEnded        = "CHALLENGE_ENDED"
	CodeLevelTooLow           = "LEVEL_TOO_LOW"
	CodeAlreadyJoined         = "ALREADY_JOINED"
	CodeChallengeFull         = "CHALLENGE_FULL"
	CodeStageNotFound         = "STAGE_NOT_FOUND"
	CodeNotJoined             = "NOT_JOINED"
	CodeProgressNotActive     = "PROGRESS_NOT_ACTIVE"
	CodeStageAlreadyCompleted = "STAGE_ALREADY_COMPLETED"
	CodeQRRequired            = "QR_REQUIRED"
	CodeQRContentRequired     = "QR_CONTENT_REQUIRED"
	CodeQRNotExpected         = "QR_NOT_EXPECTED"
	CodeQRMismatch            = "QR_MISMATCH"
	CodeLocationRequired      = "LOCATION_REQUIRED"
	CodeLocationTooFar        = "LOCATION_TOO_FAR"
	CodeUserNotFound          = "USER_NOT_FOUND"
	CodeUserInactive          = "USER_INACTIVE"
	CodeInvalidSubmissionType = "INVALID_SUBMISSION_TYPE"
	CodeInvalidStatusFilter   = "INVALID_STATUS_FILTER"
)

// Ошибки движка прохождения челленджей. Сравнение через errors.Is идет по коду.
var (
	ErrChallengeNotFound     = New(KindNotFound, CodeChallengeNotFound, "challenge not found")
	ErrChallengeInactive     = New(KindBusinessRule, CodeChallengeInactive, "challenge is not active")
	ErrChallengeNotStarted   = New(KindBusinessRule, CodeChallengeNotStarted, "challenge has not started yet")
	ErrChallengeEnded        = New(KindBusinessRule, CodeChallengeEnded, "challenge has ended")
	ErrLevelTooLow           = New(KindBusinessRule, CodeLevelTooLow, "user level is too low for this challenge")
	ErrAlreadyJoined         = New(KindBusinessRule, CodeAlreadyJoined, "user has already joined this challenge")
	ErrChallengeFull         = New(KindBusinessRule, CodeChallengeFull, "challenge is full")
	ErrStageNotFound         = New(KindNotFound, CodeStageNotFound, "stage not found")
	ErrNotJoined             = New(KindBusinessRule, CodeNotJoined, "you have not joined this challenge")
	ErrProgressNotActive     = New(KindBusinessRule, CodeProgressNotActive, "challenge progress is not active")
	ErrStageAlreadyCompleted = New(KindBusinessRule, CodeStageAlreadyCompleted, "stage already completed")
	ErrQRRequired            = New(KindBusinessRule, CodeQRRequired, "this stage requires a QR code submission")
	ErrQRContentRequired     = New(KindBusinessRule, CodeQRContentRequired, "QR code content is required")
	ErrQRNotExpected         = New(KindBusinessRule, CodeQRNotExpected, "this stage does not accept QR code submissions")
	ErrQRMismatch            = New(KindBusinessRule, CodeQRMismatch, "QR code does not match this stage")
	ErrLocationRequired      = New(KindBusinessRule, CodeLocationRequired, "location is required for this stage")
	ErrLocationTooFar        = New(KindBusinessRule, CodeLocationTooFar, "you are too far from the stage location")
	ErrUserNotFound          = New(KindNotFound, CodeUserNotFound, "user not found")
	ErrUserInactive          = New(KindBusinessRule, CodeUserInactive, "user account is inactive")
	ErrInvalidSubmissionType = New(KindValidation, CodeInvalidSubmissionType, "invalid submission type")
	ErrInvalidStatusFilter   = New(KindValidation, CodeInvalidStatusFilter, "invalid status filter")
)
