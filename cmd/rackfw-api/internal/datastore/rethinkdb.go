package datastore

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/rackstack/rackfw-api/cmd/rackfw-api/internal/fw"

	r "gopkg.in/rethinkdb/rethinkdb-go.v6"
)

var (
	tables = []string{"firmware", "rack"}
)

// A RethinkStore is the database access layer for rethinkdb.
type RethinkStore struct {
	log       *slog.Logger
	session   r.QueryExecutor
	dbsession *r.Session

	dbname string
	dbuser string
	dbpass string
	dbhost string
}

// New creates a new rethink store.
func New(log *slog.Logger, dbhost string, dbname string, dbuser string, dbpass string) *RethinkStore {
	return &RethinkStore{
		log:    log,
		dbhost: dbhost,
		dbname: dbname,
		dbuser: dbuser,
		dbpass: dbpass,
	}
}

func multi(session r.QueryExecutor, tt ...r.Term) error {
	for _, t := range tt {
		if err := t.Exec(session); err != nil {
			return err
		}
	}
	return nil
}

// Health checks if the connection to the database is ok.
func (rs *RethinkStore) Health() error {
	return multi(rs.session,
		r.Branch(
			r.Expr(tables).Difference(rs.db().TableList()).Count().Eq(0),
			r.Expr(true),
			r.Error("required tables are missing in DB")),
	)
}

// Initialize initializes the database, it should be called every time
// the application comes up before using the data store.
func (rs *RethinkStore) Initialize() error {
	return rs.initializeTables(r.TableCreateOpts{Shards: 1, Replicas: 1})
}

func (rs *RethinkStore) initializeTables(opts r.TableCreateOpts) error {
	db := rs.db()

	err := multi(rs.session,
		// create our tables
		r.Expr(tables).Difference(db.TableList()).ForEach(func(t r.Term) r.Term {
			return db.TableCreate(t, opts)
		}),
	)
	if err != nil {
		return err
	}

	rs.log.Info("tables successfully initialized")

	return nil
}

func (rs *RethinkStore) firmwareTable() *r.Term {
	res := r.DB(rs.dbname).Table("firmware")
	return &res
}
func (rs *RethinkStore) rackTable() *r.Term {
	res := r.DB(rs.dbname).Table("rack")
	return &res
}
func (rs *RethinkStore) db() *r.Term {
	res := r.DB(rs.dbname)
	return &res
}

// Mock return the mock from the rethinkdb driver and sets the
// session to this mock. This MUST NOT be called in productive code.
func (rs *RethinkStore) Mock() *r.Mock {
	m := r.NewMock()
	rs.session = m
	return m
}

// Close closes the database session.
func (rs *RethinkStore) Close() error {
	if rs.dbsession != nil {
		err := rs.dbsession.Close()
		if err != nil {
			return err
		}
	}
	rs.log.Info("rethinkstore disconnected")
	return nil
}

// Connect connects to the database. If there is an error, it will run until
// there is a connection.
func (rs *RethinkStore) Connect() error {
	rs.dbsession = retryConnect(rs.log, []string{rs.dbhost}, rs.dbname, rs.dbuser, rs.dbpass)
	rs.log.Info("rethinkstore connected")
	rs.session = rs.dbsession
	return nil
}

func connect(hosts []string, dbname, user, pwd string) (*r.Session, error) {
	session, err := r.Connect(r.ConnectOpts{
		Addresses: hosts,
		Database:  dbname,
		Username:  user,
		Password:  pwd,
		MaxIdle:   10,
		MaxOpen:   20,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot connect to DB: %w", err)
	}

	err = r.DBList().Contains(dbname).Do(func(row r.Term) r.Term {
		return r.Branch(row, nil, r.DBCreate(dbname))
	}).Exec(session)
	if err != nil {
		return nil, fmt.Errorf("cannot create database: %w", err)
	}

	return session, nil
}

// retryConnect infinitely tries to establish a database connection.
// in case a connection could not be established, the function will
// wait for a short period of time and try again.
func retryConnect(log *slog.Logger, hosts []string, dbname, user, pwd string) *r.Session {
tryAgain:
	s, err := connect(hosts, dbname, user, pwd)
	if err != nil {
		log.Error("db connection error", "db", dbname, "hosts", hosts, "error", err)
		time.Sleep(3 * time.Second)
		goto tryAgain
	}
	return s
}

func (rs *RethinkStore) findEntityByID(ctx context.Context, table *r.Term, entity any, id string) error {
	res, err := table.Get(id).Run(rs.session, r.RunOpts{Context: ctx})
	if err != nil {
		return fmt.Errorf("cannot find %v with id %q in database: %w", getEntityName(entity), id, err)
	}
	defer res.Close()
	if res.IsNil() {
		return fw.NotFound("no %v with id %q found", getEntityName(entity), id)
	}
	err = res.One(entity)
	if err != nil {
		return fmt.Errorf("more than one %v with same id exists: %w", getEntityName(entity), err)
	}
	return nil
}

func (rs *RethinkStore) searchEntities(ctx context.Context, query *r.Term, entity any) error {
	res, err := query.Run(rs.session, r.RunOpts{Context: ctx})
	if err != nil {
		return fmt.Errorf("cannot search %v in database: %w", getEntityName(entity), err)
	}
	defer res.Close()

	err = res.All(entity)
	if err != nil {
		return fmt.Errorf("cannot fetch all entities: %w", err)
	}
	return nil
}

func (rs *RethinkStore) listEntities(ctx context.Context, table *r.Term, entity any) error {
	res, err := table.Run(rs.session, r.RunOpts{Context: ctx})
	if err != nil {
		return fmt.Errorf("cannot list %v from database: %w", getEntityName(entity), err)
	}
	defer res.Close()

	err = res.All(entity)
	if err != nil {
		return fmt.Errorf("cannot fetch all entities: %w", err)
	}
	return nil
}

func (rs *RethinkStore) createEntity(ctx context.Context, table *r.Term, entity fw.Entity) error {
	now := time.Now()
	entity.SetCreated(now)
	entity.SetChanged(now)

	res, err := table.Insert(entity).RunWrite(rs.session, r.RunOpts{Context: ctx})
	if err != nil {
		if r.IsConflictErr(err) {
			return fw.Conflict("cannot create %v in database, entity already exists: %s", getEntityName(entity), entity.GetID())
		}
		return fmt.Errorf("cannot create %v in database: %w", getEntityName(entity), err)
	}

	if entity.GetID() == "" && len(res.GeneratedKeys) > 0 {
		entity.SetID(res.GeneratedKeys[0])
	}
	return nil
}

func (rs *RethinkStore) deleteEntity(ctx context.Context, table *r.Term, entity fw.Entity) error {
	_, err := table.Get(entity.GetID()).Delete().RunWrite(rs.session, r.RunOpts{Context: ctx})
	if err != nil {
		return fmt.Errorf("cannot delete %v with id %q from database: %w", getEntityName(entity), entity.GetID(), err)
	}
	return nil
}

func (rs *RethinkStore) updateEntity(ctx context.Context, table *r.Term, newEntity fw.Entity, oldEntity fw.Entity) error {
	newEntity.SetChanged(time.Now())
	_, err := table.Get(oldEntity.GetID()).Replace(func(row r.Term) r.Term {
		return r.Branch(row.Field("changed").Eq(r.Expr(oldEntity.GetChanged())), newEntity, r.Error(entityAlreadyModifiedErrorMessage))
	}).RunWrite(rs.session, r.RunOpts{Context: ctx})
	if err != nil {
		if strings.Contains(err.Error(), entityAlreadyModifiedErrorMessage) {
			return fw.Conflict("cannot update %v (%s): %s", getEntityName(newEntity), oldEntity.GetID(), entityAlreadyModifiedErrorMessage)
		}
		return fmt.Errorf("cannot update %v (%s): %w", getEntityName(newEntity), oldEntity.GetID(), err)
	}
	return nil
}

const entityAlreadyModifiedErrorMessage = "the entity was changed from another, please retry"

func getEntityName(entity any) string {
	t := reflect.TypeOf(entity)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return strings.ToLower(t.Name())
}
