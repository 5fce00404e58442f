package paths

import (
	"os"
	"path/filepath"
)

// Resolver centraliza os caminhos padrão do sideload.
// Os diretórios base são derivados do HOME do usuário.
type Resolver struct {
	homeDir string
}

// NewResolver cria um Resolver usando o HOME do usuário atual.
func NewResolver() *Resolver {
	homeDir, err := os.UserHomeDir()
	if err != nil || homeDir == "" {
		homeDir = os.Getenv("HOME")
	}
	if homeDir == "" {
		homeDir = "."
	}
	return &Resolver{homeDir: homeDir}
}

// NewResolverWithHome cria um Resolver com homeDir explícito (útil para testes).
func NewResolverWithHome(homeDir string) *Resolver {
	return &Resolver{homeDir: homeDir}
}

// HomeDir retorna o diretório HOME resolvido.
func (r *Resolver) HomeDir() string {
	return r.homeDir
}

// ConfigDir retorna ~/.config/sideload.
func (r *Resolver) ConfigDir() string {
	return filepath.Join(r.homeDir, ".config", "sideload")
}

// DataDir retorna ~/.local/share/sideload.
func (r *Resolver) DataDir() string {
	return filepath.Join(r.homeDir, ".local", "share", "sideload")
}

// LogDir retorna ~/.local/share/sideload/logs.
func (r *Resolver) LogDir() string {
	return filepath.Join(r.DataDir(), "logs")
}

// DefaultDBFile retorna o caminho padrão do banco de histórico.
func (r *Resolver) DefaultDBFile() string {
	return filepath.Join(r.DataDir(), "history.db")
}

// DefaultLogFile retorna o caminho padrão do arquivo de log.
func (r *Resolver) DefaultLogFile() string {
	return filepath.Join(r.LogDir(), "sideload.log")
}
