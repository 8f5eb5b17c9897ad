package backend

// LoginRequest for POST /api/v1/auth/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse from POST /api/v1/auth/login
type LoginResponse struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Location string `json:"location"`
}

// AttendanceResponse from POST /api/v1/attendance
type AttendanceResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	Employee   string  `json:"employee"`
	Confidence float64 `json:"confidence"`
	CheckIn    string  `json:"check_in,omitempty"`
	CheckOut   string  `json:"check_out,omitempty"`
}

// RegisterDeviceRequest for POST /api/v1/devices
type RegisterDeviceRequest struct {
	DeviceID  string `json:"device_id"`
	PushToken string `json:"push_token,omitempty"`
	Location  string `json:"location,omitempty"`
}

// ErrorResponse is the backend's error envelope.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
