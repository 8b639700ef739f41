// Package server implements the collections key/value service that batches
// are dispatched against during development.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/meftunca/postbench/pkg/auth"
	"github.com/meftunca/postbench/pkg/common"
	"github.com/meftunca/postbench/pkg/compression"
	"github.com/meftunca/postbench/pkg/config"
	pbjson "github.com/meftunca/postbench/pkg/json"
	"github.com/meftunca/postbench/pkg/payload"
	"github.com/meftunca/postbench/pkg/serialization"
	"github.com/meftunca/postbench/pkg/storage"
	"github.com/meftunca/postbench/pkg/types"
	"github.com/meftunca/postbench/pkg/version"
)

// CollectionsKey is the record POST /collections writes to
const CollectionsKey = "collections"

// Server serves the collections routes over Fiber
type Server struct {
	app           *fiber.App
	store         storage.Store
	encoder       pbjson.Encoder
	codecs        *serialization.CodecFactory
	compression   *compression.CompressorFactory
	authenticator *auth.Authenticator
	logger        common.Logger
	addr          string
}

// New creates a server for cfg on top of store
func New(cfg *config.Config, store storage.Store, log common.Logger) (*Server, error) {
	encoder, err := pbjson.New(cfg.JSON)
	if err != nil {
		return nil, types.NewProbeErrorWithCause(types.ErrCodeInvalidConfig, "json encoder", err)
	}

	codecs := serialization.NewCodecFactory()
	if err := codecs.InitializeDefaultCodecs(cfg); err != nil {
		return nil, err
	}

	factory := compression.NewCompressorFactory()
	if err := factory.InitializeDefaultCompressors(cfg.Compression); err != nil {
		return nil, err
	}

	if log == nil {
		log = common.DefaultLogger
	}

	s := &Server{
		store:       store,
		encoder:     encoder,
		codecs:      codecs,
		compression: factory,
		logger:      log,
		addr:        cfg.ServerAddr(),
	}

	if cfg.Auth.Enabled() {
		if s.authenticator, err = auth.NewAuthenticator(cfg.Auth); err != nil {
			return nil, err
		}
	}

	s.app = fiber.New(fiber.Config{
		AppName:               version.AppName + " collections server " + version.Version,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		JSONEncoder:           encoder.Marshal,
		JSONDecoder:           encoder.Unmarshal,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if cfg.Server.EnableLogger {
		s.app.Use(logger.New(logger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
			TimeFormat: "2006/01/02 15:04:05",
		}))
	}
	s.app.Use(recover.New())
	if s.authenticator != nil {
		s.app.Use(s.requireBearer)
	}

	s.setupRoutes()
	return s, nil
}

// App exposes the Fiber application, mostly for app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) setupRoutes() {
	s.app.Post("/collections", s.handleCreateCollection)
	s.app.Get("/collections", s.handleGetCollections)

	s.app.Put("/:key", s.handlePutValue)
	s.app.Get("/:key", s.handleGetValue)
	s.app.Delete("/:key", s.handleDeleteValue)
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.Infof("collections server listening on %s", s.addr)
	return s.app.Listen(s.addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.app.ShutdownWithContext(ctx)
}

// requireBearer rejects requests without a valid bearer token
func (s *Server) requireBearer(c *fiber.Ctx) error {
	token, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
	}
	claims, err := s.authenticator.ValidateToken(token)
	if err != nil {
		s.logger.Debugf("rejected token from %s: %v", c.IP(), err)
		return fiber.NewError(fiber.StatusUnauthorized, "invalid bearer token")
	}
	c.Locals("subject", claims.Subject)
	return c.Next()
}

// body returns the request body decoded according to Content-Encoding
func (s *Server) body(c *fiber.Ctx) ([]byte, error) {
	raw := c.Request().Body()
	compressor, err := s.compression.ForContentEncoding(c.Get(fiber.HeaderContentEncoding))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	}
	data, err := compressor.Decompress(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return data, nil
}

// handleCreateCollection stores the first posted payload as a one element
// JSON array. Later posts leave the record unchanged and echo it back.
func (s *Server) handleCreateCollection(c *fiber.Ctx) error {
	data, err := s.body(c)
	if err != nil {
		return err
	}

	codec, err := s.codecs.ForContentType(c.Get(fiber.HeaderContentType))
	if err != nil {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	}

	var p payload.Payload
	if err := codec.Unmarshal(data, &p); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	existing, err := s.store.Get(ctx, CollectionsKey)
	if err == nil {
		return s.sendJSONBytes(c, existing)
	}
	if !errors.Is(err, types.ErrKeyNotFound) {
		return err
	}

	serialized, err := s.encoder.Marshal([]payload.Payload{p})
	if err != nil {
		return types.ErrSerializationError("json", err)
	}
	if err := s.store.Put(ctx, CollectionsKey, serialized); err != nil {
		return err
	}
	return s.sendJSONBytes(c, serialized)
}

func (s *Server) handleGetCollections(c *fiber.Ctx) error {
	value, err := s.store.Get(c.UserContext(), CollectionsKey)
	if errors.Is(err, types.ErrKeyNotFound) {
		return c.Status(fiber.StatusNotFound).SendString("No collections in db")
	}
	if err != nil {
		return err
	}
	return s.sendJSONBytes(c, value)
}

func (s *Server) handlePutValue(c *fiber.Ctx) error {
	data, err := s.body(c)
	if err != nil {
		return err
	}
	if err := s.store.Put(c.UserContext(), c.Params("key"), data); err != nil {
		return err
	}
	return c.Send(data)
}

func (s *Server) handleGetValue(c *fiber.Ctx) error {
	value, err := s.store.Get(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.Send(value)
}

func (s *Server) handleDeleteValue(c *fiber.Ctx) error {
	value, err := s.store.Delete(c.UserContext(), c.Params("key"))
	if err != nil {
		return err
	}
	return c.Send(value)
}

func (s *Server) sendJSONBytes(c *fiber.Ctx, data []byte) error {
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// handleError maps store and codec errors to status codes
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var fe *fiber.Error
	var pe *types.ProbeError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &pe) && pe.Code == types.ErrCodeKeyNotFound:
		code = fiber.StatusNotFound
		message = pe.Message
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Errorf("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(code).SendString(message)
}
