package sqlutil

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/catalogo-app/perfil/setup/config"
	"github.com/catalogo-app/perfil/setup/process"
)

type Connections struct {
	globalConfig        config.DatabaseOptions
	processContext      *process.ProcessContext
	mu                  sync.Mutex
	existingConnections map[config.DataSource]*con
}

type con struct {
	db     *sql.DB
	writer Writer
}

func NewConnectionManager(processCtx *process.ProcessContext, globalConfig config.DatabaseOptions) *Connections {
	return &Connections{
		globalConfig:        globalConfig,
		processContext:      processCtx,
		existingConnections: make(map[config.DataSource]*con),
	}
}

// Connection returns a database handle and the writer that must be used for
// writes to it. Two callers asking for the same connection string share both.
func (c *Connections) Connection(dbProperties *config.DatabaseOptions) (*sql.DB, Writer, error) {
	// If no connectionString was provided, try the global one
	if dbProperties.ConnectionString == "" {
		dbProperties = &c.globalConfig
		// If we still don't have a connection string, that's a problem
		if dbProperties.ConnectionString == "" {
			return nil, nil, fmt.Errorf("no database connections configured")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if ex, ok := c.existingConnections[dbProperties.ConnectionString]; ok {
		return ex.db, ex.writer, nil
	}

	writer := NewDummyWriter()
	if dbProperties.ConnectionString.IsSQLite() {
		writer = NewExclusiveWriter()
	}

	// Open a new database connection using the supplied config.
	db, err := Open(dbProperties)
	if err != nil {
		return nil, nil, err
	}
	c.existingConnections[dbProperties.ConnectionString] = &con{db: db, writer: writer}
	if c.processContext != nil {
		// Wait for the process to shut down to cleanly close the database
		// connection.
		c.processContext.ComponentStarted()
		go func() {
			<-c.processContext.WaitForShutdown()
			_ = db.Close()
			c.processContext.ComponentFinished()
		}()
	}
	return db, writer, nil
}
