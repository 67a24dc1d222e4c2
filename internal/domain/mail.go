package domain

const EmailQueue = "email_queue"

const (
	MailTypeCreateUser    = "create_user"
	MailTypeResetPassword = "reset_password"
	MailTypeRunFinished   = "run_finished"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResetPasswordMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"` // 分钟
}

type RunFinishedMailData struct {
	FullName    string    `json:"fullName"`
	RunID       string    `json:"runID"`
	RunName     string    `json:"runName"`
	Status      RunStatus `json:"status"`
	BestFitness float64   `json:"bestFitness"`
	Error       string    `json:"error"`
}
