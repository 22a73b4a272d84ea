package models

// ConnectionConfig describes how to reach one of the model's databases.
// Either URL or the discrete host fields are used.
type ConnectionConfig struct {
	Database string   `yaml:"database" json:"database"`
	Driver   string   `yaml:"driver" json:"driver"` // pgx, postgres, mysql
	URL      string   `yaml:"url,omitempty" json:"-"`
	Host     string   `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int      `yaml:"port,omitempty" json:"port,omitempty"`
	User     string   `yaml:"user,omitempty" json:"user,omitempty"`
	Password string   `yaml:"password,omitempty" json:"-"`
	DBName   string   `yaml:"dbname,omitempty" json:"dbname,omitempty"`
	Schemas  []string `yaml:"schemas,omitempty" json:"schemas,omitempty"`
	MaxConns int      `yaml:"maxConns,omitempty" json:"max_conns,omitempty"`
}
