package cli

// Config содержит конфигурацию CLI executor
type Config struct {
	// Command - путь к исполняемому файлу (например, "/usr/sbin/sendmail")
	Command string `envconfig:"SENDMAIL_PATH" default:"/usr/sbin/sendmail"`
}
