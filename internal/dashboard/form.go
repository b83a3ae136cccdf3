package dashboard

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sweeney/complex-monitor/internal/config"
)

// formToken binds the admin form to the node secret and the current boot,
// so a form rendered before a restart is rejected after it.
func formToken(secret, bootID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("config-form:" + bootID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Server) validToken(got string) bool {
	want := formToken(s.opts.Secret, s.opts.BootID)
	return hmac.Equal([]byte(got), []byte(want))
}

// configForm is the editable subset of the configuration.
type configForm struct {
	Identity       string
	WebPort        int
	BrokerEndpoint string
	BrokerPort     int
	BrokerTopic    string
}

func formFromConfig(c config.Config) configForm {
	return configForm{
		Identity:       c.Identity,
		WebPort:        c.Web.Port,
		BrokerEndpoint: c.Broker.Endpoint,
		BrokerPort:     c.Broker.Port,
		BrokerTopic:    c.Broker.Topic,
	}
}

// parseConfigForm reads and checks the posted fields.
func parseConfigForm(r *http.Request) (configForm, error) {
	var f configForm
	f.Identity = strings.TrimSpace(r.PostFormValue("identity"))
	f.BrokerEndpoint = strings.TrimSpace(r.PostFormValue("broker_endpoint"))
	f.BrokerTopic = strings.TrimSpace(r.PostFormValue("broker_topic"))

	var err error
	if f.WebPort, err = parsePort(r.PostFormValue("web_port")); err != nil {
		return f, fmt.Errorf("web port: %w", err)
	}
	if f.BrokerPort, err = parsePort(r.PostFormValue("broker_port")); err != nil {
		return f, fmt.Errorf("broker port: %w", err)
	}
	if f.Identity == "" {
		return f, errors.New("identity is required")
	}
	if f.BrokerEndpoint == "" {
		return f, errors.New("broker endpoint is required")
	}
	if f.BrokerTopic == "" {
		return f, errors.New("broker topic is required")
	}
	return f, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("%d out of range", p)
	}
	return p, nil
}

func (f configForm) apply(c *config.Config) {
	c.Identity = f.Identity
	c.Web.Port = f.WebPort
	c.Broker.Endpoint = f.BrokerEndpoint
	c.Broker.Port = f.BrokerPort
	c.Broker.Topic = f.BrokerTopic
}

func (s *Server) handleConfigForm(w http.ResponseWriter, r *http.Request) {
	s.renderConfig(w, http.StatusOK, formFromConfig(s.opts.Store.Get()), "")
}

func (s *Server) handleConfigSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	if !s.validToken(r.PostFormValue("token")) {
		s.logger.Warn("config form rejected", zap.String("reason", "bad token"), zap.String("remote", clientIP(r)))
		http.Error(w, "invalid form token", http.StatusForbidden)
		return
	}

	f, err := parseConfigForm(r)
	if err != nil {
		s.renderConfig(w, http.StatusBadRequest, f, err.Error())
		return
	}
	if err := s.opts.Store.Update(f.apply); err != nil {
		s.logger.Warn("config update failed", zap.Error(err))
		s.renderConfig(w, http.StatusBadRequest, f, err.Error())
		return
	}

	s.logger.Info("config updated",
		zap.String("identity", f.Identity),
		zap.Int("web_port", f.WebPort),
		zap.String("broker", fmt.Sprintf("%s:%d", f.BrokerEndpoint, f.BrokerPort)),
		zap.String("topic", f.BrokerTopic))
	http.Redirect(w, r, "/config-done", http.StatusSeeOther)
}

func (s *Server) handleConfigDone(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := doneTmpl.Execute(w, nil); err != nil {
		s.logger.Warn("render config-done", zap.Error(err))
	}
}

func (s *Server) renderConfig(w http.ResponseWriter, code int, f configForm, msg string) {
	data := struct {
		Form  configForm
		Token string
		Error string
	}{f, formToken(s.opts.Secret, s.opts.BootID), msg}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := configTmpl.Execute(w, data); err != nil {
		s.logger.Warn("render config", zap.Error(err))
	}
}
