package response

// 业务状态码
const (
	CodeSuccess = 0
	CodeError   = 1

	// 用户/认证模块错误 100xx
	ErrUserExists        = 10001
	ErrUserNotFound      = 10002
	ErrAuthFailed        = 10003
	ErrTokenInvalid      = 10004
	ErrNoPermission      = 10005
	ErrUsernameTaken     = 10006
	ErrUsernameCooldown  = 10007
	ErrInvalidResetToken = 10008

	// 动态模块错误 200xx
	ErrPostNotFound = 20001

	// 直播间模块错误 300xx
	ErrEventNotFound   = 30001
	ErrEventEnded      = 30002
	ErrCommentNotFound = 30003
	ErrEventNotAllowed = 30004

	// 私信模块错误 400xx
	ErrReceiverNotFound = 40001

	// 系统错误 500xx
	ErrServerInternal  = 50001
	ErrInvalidParam    = 50002
	ErrTooManyRequests = 50003
	ErrVersionConflict = 50004
)
