package health

import "time"

type Input struct{}

type Output struct {
	Body Response
}

// Response состояние сервиса. ServerTime позволяет устройству оценить
// расхождение своих часов с серверными.
type Response struct {
	Status     string    `json:"status" example:"OK" doc:"Health status of the service"`
	Database   string    `json:"database" example:"up" doc:"Database reachability"`
	ServerTime time.Time `json:"server_time" doc:"Server clock, UTC"`
}
