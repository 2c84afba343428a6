package chart

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/skalibog/structchart/pkg/logger"
)

// Registry владеет линиями двух независимых групп:
// серверные (тренды и граница дня) и пользовательские (инструмент рисования).
type Registry struct {
	remover LineRemover
	server  []OverlayID
	user    []OverlayID
}

// NewRegistry создает реестр линий
func NewRegistry(remover LineRemover) *Registry {
	return &Registry{remover: remover}
}

// RegisterServer регистрирует серверную линию
func (r *Registry) RegisterServer(id OverlayID) {
	r.server = append(r.server, id)
}

// RegisterUser регистрирует пользовательскую линию
func (r *Registry) RegisterUser(id OverlayID) {
	r.user = append(r.user, id)
}

// ClearServer удаляет все серверные линии
func (r *Registry) ClearServer() error {
	ids := r.server
	r.server = nil
	return r.dispose("server", ids)
}

// ClearUser удаляет все пользовательские линии
func (r *Registry) ClearUser() error {
	ids := r.user
	r.user = nil
	return r.dispose("user", ids)
}

// ServerCount количество живых серверных линий
func (r *Registry) ServerCount() int {
	return len(r.server)
}

// UserCount количество живых пользовательских линий
func (r *Registry) UserCount() int {
	return len(r.user)
}

// dispose передает каждую линию поверхности ровно один раз.
// Линия, которую не удалось удалить, все равно забывается.
func (r *Registry) dispose(group string, ids []OverlayID) error {
	var errs error
	for _, id := range ids {
		if err := r.remover.RemoveLine(id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("ошибка удаления линии %s: %w", id, err))
		}
	}

	if errs != nil {
		logger.Warn("Не все линии удалены",
			zap.String("group", group),
			zap.Int("failed", len(multierr.Errors(errs))),
			zap.Int("total", len(ids)))
	}
	return errs
}
