// Package rpatest provides an in-memory Remote Planning API for tests.
package rpatest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/rohits-web03/planrelay/internal/rpa"
)

const (
	PartnerID    = "partner-1"
	ClientID     = "client-id"
	ClientSecret = "client-secret"
)

type upload struct {
	name     string
	length   int64
	data     []byte
	offsets  []int64
	finished bool
}

type file struct {
	rpa.InputFile
	data       []byte
	readyAfter int
	gets       int
	extension  string
}

type plan struct {
	rpa.Plan
	request rpa.CreatePlanRequest
}

// ChunkCall records one chunk upload as seen by the server.
type ChunkCall struct {
	Session string
	Offset  int64
	Length  int
}

// Server fakes the token endpoint and the graph endpoints used by rpa.Client.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	seq         int
	tokens      int
	folders     map[string]rpa.Folder
	uploads     map[string]*upload
	files       map[string]*file
	plans       map[string]*plan
	chunks      []ChunkCall
	planGets    map[string]int
	forbidden   string
	failUploads map[string]bool
	readyAfter  int
	noPlanID    bool
	launchFails bool
	onRequest   func(r *http.Request)
}

func NewServer() *Server {
	s := &Server{
		folders:     map[string]rpa.Folder{},
		uploads:     map[string]*upload{},
		files:       map[string]*file{},
		plans:       map[string]*plan{},
		planGets:    map[string]int{},
		failUploads: map[string]bool{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Credentials returns credentials accepted by the token endpoint.
func (s *Server) Credentials() rpa.Credentials {
	return rpa.Credentials{
		TokenURL:     s.URL + "/oauth/token",
		ClientID:     ClientID,
		ClientSecret: ClientSecret,
		PartnerID:    PartnerID,
	}
}

// NewClient returns a client wired to this server.
func (s *Server) NewClient() *rpa.Client {
	auth := rpa.NewOAuthAuthenticator(s.Credentials(), s.Client())
	return rpa.NewClient(rpa.Config{BaseURL: s.URL, PartnerID: PartnerID, HTTPClient: s.Client()}, auth)
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// AddFile registers a READY remote input file and returns its id.
func (s *Server) AddFile(name string, role rpa.FileRole, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID("file")
	s.files[id] = &file{
		InputFile: rpa.InputFile{ID: id, Name: name, Role: role, Status: rpa.FileStatusReady},
		data:      data,
	}
	return id
}

func (s *Server) SetPlanStatus(id string, status rpa.PlanStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.plans[id]; ok {
		p.Status = status
	}
}

// Forbid makes every graph call answer 403 with the given debug header.
func (s *Server) Forbid(debug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forbidden = debug
}

// SetReadyAfter sets how many GETs an uploaded file answers PROCESSING
// before turning READY.
func (s *Server) SetReadyAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyAfter = n
}

// CreatePlanWithoutID makes plan creation answer an empty id.
func (s *Server) CreatePlanWithoutID(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noPlanID = on
}

// LaunchFails makes launch answer success=false.
func (s *Server) LaunchFails(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launchFails = on
}

// OnRequest registers fn to run before each request is served. fn runs
// without the server lock held.
func (s *Server) OnRequest(fn func(r *http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRequest = fn
}

// FailUpload makes chunk uploads for the named file answer 500.
func (s *Server) FailUpload(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUploads[name] = true
}

func (s *Server) TokenRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

func (s *Server) Chunks() []ChunkCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChunkCall(nil), s.chunks...)
}

func (s *Server) PlanGets(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planGets[id]
}

func (s *Server) Plans() []rpa.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rpa.Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p.Plan)
	}
	return out
}

// PlanRequest returns the create request a remote plan was made from.
func (s *Server) PlanRequest(id string) (rpa.CreatePlanRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return rpa.CreatePlanRequest{}, false
	}
	return p.request, true
}

// FileData returns the bytes stored for a remote file.
func (s *Server) FileData(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, false
	}
	return f.data, true
}

func (s *Server) FileByName(name string) (rpa.InputFile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.files {
		if f.Name == name {
			return f.InputFile, true
		}
	}
	return rpa.InputFile{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hook := s.onRequest
	s.mu.Unlock()
	if hook != nil {
		hook(r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if r.URL.Path == "/oauth/token" {
		s.handleToken(w, r)
		return
	}
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing token"})
		return
	}
	if s.forbidden != "" {
		w.Header().Set("WWW-Authenticate", s.forbidden)
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	id, edge := parts[0], ""
	if len(parts) > 1 {
		edge = parts[1]
	}

	switch {
	case r.Method == http.MethodPost && id == PartnerID && edge == "tg_plan_folders":
		s.createFolder(w, r)
	case r.Method == http.MethodPost && id == PartnerID && edge == "uploads":
		s.createUpload(w, r)
	case r.Method == http.MethodPost && id == PartnerID && edge == "tg_input_files":
		s.attachFile(w, r)
	case r.Method == http.MethodPost && edge == "" && s.uploads[id] != nil:
		s.uploadChunk(w, r, id)
	case r.Method == http.MethodPost && edge == "tg_plans":
		s.createPlan(w, r, id)
	case r.Method == http.MethodPost && edge == "launch" && s.plans[id] != nil:
		p := s.plans[id]
		if s.launchFails {
			writeJSON(w, http.StatusOK, map[string]bool{"success": false})
			return
		}
		p.Status = rpa.PlanStatusRunning
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case r.Method == http.MethodPost && edge == "cancel" && s.plans[id] != nil:
		s.plans[id].Status = rpa.PlanStatusKilled
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	case r.Method == http.MethodGet && edge == "download" && s.files[id] != nil:
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(s.files[id].data)
	case r.Method == http.MethodGet && edge == "":
		s.get(w, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown path " + r.URL.Path})
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if r.Form.Get("grant_type") != "client_credentials" ||
		r.Form.Get("client_id") != ClientID ||
		r.Form.Get("client_secret") != ClientSecret ||
		r.Form.Get("partner_id") != PartnerID {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
		return
	}
	s.tokens++
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": fmt.Sprintf("tok-%d", s.tokens),
		"token_type":   "bearer",
		"expires_in":   3600,
	})
}

func (s *Server) createFolder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	id := s.nextID("folder")
	s.folders[id] = rpa.Folder{ID: id, Name: body.Name}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) createUpload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	length, err := strconv.ParseInt(q.Get("file_length"), 10, 64)
	if err != nil || q.Get("file_name") == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad upload session"})
		return
	}
	id := "upload:" + s.nextID("session")
	s.uploads[id] = &upload{name: q.Get("file_name"), length: length}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) uploadChunk(w http.ResponseWriter, r *http.Request, id string) {
	u := s.uploads[id]
	if s.failUploads[u.name] {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
		return
	}
	offset, err := strconv.ParseInt(r.Header.Get("file_offset"), 10, 64)
	if err != nil || offset != int64(len(u.data)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unexpected offset"})
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	u.data = append(u.data, data...)
	u.offsets = append(u.offsets, offset)
	s.chunks = append(s.chunks, ChunkCall{Session: id, Offset: offset, Length: len(data)})
	if int64(len(u.data)) >= u.length {
		u.finished = true
	}
	writeJSON(w, http.StatusOK, map[string]string{"h": "handle:" + id})
}

func (s *Server) attachFile(w http.ResponseWriter, r *http.Request) {
	var meta rpa.FileMetadata
	if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	session := strings.TrimPrefix(meta.Handle, "handle:")
	u, ok := s.uploads[session]
	if !ok || !u.finished {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown or unfinished handle"})
		return
	}
	id := s.nextID("file")
	f := &file{
		InputFile:  rpa.InputFile{ID: id, Name: meta.Name, Role: meta.Role, Status: rpa.FileStatusProcessing},
		data:       u.data,
		readyAfter: s.readyAfter,
		extension:  meta.Extension,
	}
	if f.readyAfter == 0 {
		f.Status = rpa.FileStatusReady
	}
	s.files[id] = f
	writeJSON(w, http.StatusOK, f.InputFile)
}

func (s *Server) createPlan(w http.ResponseWriter, r *http.Request, folderID string) {
	if _, ok := s.folders[folderID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown folder"})
		return
	}
	var req rpa.CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	for _, fid := range []string{req.DSMFileID, req.BoundaryFileID, req.SitesFileID} {
		if _, ok := s.files[fid]; !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown input file " + fid})
			return
		}
	}
	if s.noPlanID {
		writeJSON(w, http.StatusOK, map[string]string{})
		return
	}
	req.FolderID = folderID
	id := s.nextID("plan")
	s.plans[id] = &plan{
		Plan:    rpa.Plan{ID: id, Name: req.Name, Status: rpa.PlanStatusInPreparation},
		request: req,
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) get(w http.ResponseWriter, id string) {
	if f, ok := s.folders[id]; ok {
		writeJSON(w, http.StatusOK, f)
		return
	}
	if p, ok := s.plans[id]; ok {
		s.planGets[id]++
		writeJSON(w, http.StatusOK, p.Plan)
		return
	}
	if f, ok := s.files[id]; ok {
		f.gets++
		if f.Status == rpa.FileStatusProcessing && f.gets > f.readyAfter {
			f.Status = rpa.FileStatusReady
		}
		writeJSON(w, http.StatusOK, f.InputFile)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown object " + id})
}
