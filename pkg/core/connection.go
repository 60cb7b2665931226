package core

// Connection is a saved database connection.
// Name is derived from the host and database segments of the connection string.
type Connection struct {
	Name             string `json:"name"`
	ConnectionString string `json:"connectionString"`
}
