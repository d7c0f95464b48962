package handler

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ivanov-nikolay/notes_storage/internal/auth"
	"github.com/ivanov-nikolay/notes_storage/internal/library"
	"github.com/ivanov-nikolay/notes_storage/internal/logging"
	"github.com/ivanov-nikolay/notes_storage/internal/metrics"
	"github.com/ivanov-nikolay/notes_storage/internal/models"
)

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// writeError переводит ошибку в текстовый ответ
func writeError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.Is(err, models.ErrFileNotFound):
		http.Error(w, "File not found", http.StatusNotFound)
	case errors.Is(err, models.ErrFolderNotFound):
		http.Error(w, "Folder not found", http.StatusNotFound)
	case errors.Is(err, models.ErrUnsupportedType):
		http.Error(w, "File type not supported for reading.", http.StatusUnsupportedMediaType)
	case errors.Is(err, models.ErrInvalidName):
		http.Error(w, "Invalid folder or file name", http.StatusBadRequest)
	case errors.As(err, &maxBytesErr):
		http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
	default:
		logging.Error("request failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		logging.Error("template render failed", zap.String("template", name), zap.Error(err))
	}
}

func currentUser(r *http.Request) string {
	if claims := auth.GetClaims(r.Context()); claims != nil {
		return claims.Username
	}
	return ""
}

// handleIndex список папок
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	folders, err := s.lib.ListFolders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	s.render(w, http.StatusOK, "index.html", map[string]any{
		"User":    currentUser(r),
		"Folders": folders,
	})
}

// handleUpload обрабатывает загрузку одного или нескольких файлов в папку
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploads.TryAcquire(1) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	defer s.uploads.Release(1)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, err)
			return
		}
		http.Error(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	folder := r.FormValue("folder_name")
	headers := r.MultipartForm.File["files"]

	payloads := make([]library.Payload, 0, len(headers))
	for _, fh := range headers {
		payloads = append(payloads, library.Payload{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	result, err := s.lib.Upload(r.Context(), folder, payloads)
	metrics.RecordUpload(len(result.Saved), len(result.Skipped), result.Bytes)
	if err != nil {
		writeError(w, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleCreateFolder создает папку
func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.CreateFolder(r.Context(), r.FormValue("folder_name")); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDeleteFile удаляет файл из папки
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder")
	filename := r.PathValue("filename")

	if err := s.lib.DeleteFile(r.Context(), folder, filename); err != nil {
		metrics.RecordDelete("file", deleteResult(err))
		writeError(w, err)
		return
	}
	metrics.RecordDelete("file", "ok")

	http.Redirect(w, r, "/folder/"+url.PathEscape(folder), http.StatusSeeOther)
}

// handleDeleteFolder удаляет папку со всем содержимым
func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.DeleteFolder(r.Context(), r.PathValue("folder")); err != nil {
		metrics.RecordDelete("folder", deleteResult(err))
		writeError(w, err)
		return
	}
	metrics.RecordDelete("folder", "ok")

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func deleteResult(err error) string {
	if errors.Is(err, models.ErrFileNotFound) || errors.Is(err, models.ErrFolderNotFound) {
		return "not_found"
	}
	return "error"
}

// handleViewFolder список файлов папки
func (s *Server) handleViewFolder(w http.ResponseWriter, r *http.Request) {
	folder := r.PathValue("folder_name")

	files, err := s.lib.ListFiles(r.Context(), folder)
	if err != nil {
		writeError(w, err)
		return
	}

	s.render(w, http.StatusOK, "folder.html", map[string]any{
		"User":   currentUser(r),
		"Folder": folder,
		"Files":  files,
	})
}

// handleRead показывает файл на странице согласно его типу
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	out, err := s.renderer.Render(r.PathValue("folder"), r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordRender(string(out.Kind))

	s.render(w, http.StatusOK, "view.html", out)
}

// handleStaticView отдает сырое содержимое файла для встраивания в страницу
func (s *Server) handleStaticView(w http.ResponseWriter, r *http.Request) {
	path, err := s.lib.FilePath(r.PathValue("folder"), r.PathValue("filename"))
	if err != nil {
		writeError(w, err)
		return
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = models.ErrFileNotFound
		}
		writeError(w, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		writeError(w, err)
		return
	}

	disposition := mime.FormatMediaType("inline", map[string]string{"filename": filepath.Base(path)})
	if disposition == "" {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", disposition)
	http.ServeContent(w, r, info.Name(), info.ModTime(), file)
}
