package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder-go/internal/agent"
	"resume-builder-go/internal/analysis"
	"resume-builder-go/internal/parser"
	"resume-builder-go/internal/resume"
	"resume-builder-go/internal/storage"
	"resume-builder-go/internal/storage/models"
)

// fakeStore 内存实现的 ResumeStore 与 SessionStore
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	resumes   map[string]*models.Resume
	analyses  []models.ResumeAnalysis
	sessions  map[string]*models.Session
	events    []string
	lookups   int
	createErr error

	// beforeConditionalSave 在条件写入比对之前执行，用于模拟并发保存
	beforeConditionalSave func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{resumes: map[string]*models.Resume{}, sessions: map[string]*models.Session{}}
}

func (f *fakeStore) put(owner, id, doc string) {
	now := time.Now()
	r := &models.Resume{ID: id, UserEmail: owner, CreatedAt: now, UpdatedAt: now}
	if doc != "" {
		r.NormalizedJSON = []byte(doc)
	}
	f.resumes[id] = r
}

func (f *fakeStore) CreateResume(_ context.Context, owner string) (*models.Resume, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	r := &models.Resume{ID: fmt.Sprintf("r-%d", f.seq), UserEmail: owner, CreatedAt: time.Now()}
	f.resumes[r.ID] = r
	return r, nil
}

func (f *fakeStore) ListResumes(_ context.Context, owner string) ([]models.Resume, error) {
	var rows []models.Resume
	for _, r := range f.resumes {
		if r.UserEmail == owner {
			rows = append(rows, *r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return rows, nil
}

func (f *fakeStore) GetResume(_ context.Context, owner, id string) (*models.Resume, error) {
	r, ok := f.resumes[id]
	if !ok || r.UserEmail != owner {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) SaveResumeDocument(_ context.Context, owner, id string, doc []byte, eventType string) error {
	r, ok := f.resumes[id]
	if !ok || r.UserEmail != owner {
		return storage.ErrNotFound
	}
	r.NormalizedJSON = append([]byte(nil), doc...)
	r.UpdatedAt = r.UpdatedAt.Add(time.Millisecond)
	f.events = append(f.events, eventType)
	return nil
}

func (f *fakeStore) SaveResumeDocumentIfUnchanged(ctx context.Context, owner, id string, readAt time.Time, doc []byte, eventType string) error {
	if f.beforeConditionalSave != nil {
		f.beforeConditionalSave()
	}
	r, ok := f.resumes[id]
	if !ok || r.UserEmail != owner || !r.UpdatedAt.Equal(readAt) {
		return storage.ErrStaleWrite
	}
	return f.SaveResumeDocument(ctx, owner, id, doc, eventType)
}

func (f *fakeStore) SetImportTextPath(_ context.Context, owner, id, path string) error {
	r, ok := f.resumes[id]
	if !ok || r.UserEmail != owner {
		return storage.ErrNotFound
	}
	r.ImportTextPath = path
	return nil
}

func (f *fakeStore) DeleteResume(_ context.Context, owner, id string) (*models.Resume, error) {
	r, ok := f.resumes[id]
	if !ok || r.UserEmail != owner {
		return nil, storage.ErrNotFound
	}
	delete(f.resumes, id)
	f.events = append(f.events, models.EventResumeDeleted)
	return r, nil
}

func (f *fakeStore) CreateAnalysis(_ context.Context, a *models.ResumeAnalysis) error {
	f.seq++
	a.ID = fmt.Sprintf("a-%d", f.seq)
	f.analyses = append(f.analyses, *a)
	f.events = append(f.events, models.EventResumeAnalyzed)
	return nil
}

func (f *fakeStore) ListAnalyses(_ context.Context, owner, resumeID string) ([]models.ResumeAnalysis, error) {
	var rows []models.ResumeAnalysis
	for i := len(f.analyses) - 1; i >= 0; i-- {
		a := f.analyses[i]
		if a.UserEmail == owner && a.ResumeID == resumeID {
			rows = append(rows, a)
		}
	}
	return rows, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s *models.Session) error {
	f.seq++
	s.ID = uint64(f.seq)
	f.sessions[s.SessionToken] = s
	return nil
}

func (f *fakeStore) SessionByToken(_ context.Context, token string) (*models.Session, error) {
	f.lookups++
	s, ok := f.sessions[token]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s, nil
}

func (f *fakeStore) DeleteSessionByToken(_ context.Context, token string) error {
	if _, ok := f.sessions[token]; !ok {
		return storage.ErrNotFound
	}
	delete(f.sessions, token)
	return nil
}

type fakeCache struct {
	entries map[string]*models.Session
	sets    int
}

func (c *fakeCache) GetSession(_ context.Context, token string) (*models.Session, error) {
	if s, ok := c.entries[token]; ok {
		return s, nil
	}
	return nil, storage.ErrCacheMiss
}

func (c *fakeCache) SetSession(_ context.Context, s *models.Session) error {
	c.sets++
	c.entries[s.SessionToken] = s
	return nil
}

func (c *fakeCache) DeleteSession(_ context.Context, token string) error {
	delete(c.entries, token)
	return nil
}

type fakeArchive struct {
	objects map[string]string
	deleted []string
}

func (a *fakeArchive) PutImportText(_ context.Context, resumeID, text string) (string, error) {
	name := storage.ImportTextObjectName(resumeID)
	a.objects[name] = text
	return name, nil
}

func (a *fakeArchive) GetImportText(_ context.Context, objectName string) (string, error) {
	text, ok := a.objects[objectName]
	if !ok {
		return "", storage.ErrNotFound
	}
	return text, nil
}

func (a *fakeArchive) DeleteImportText(_ context.Context, objectName string) error {
	a.deleted = append(a.deleted, objectName)
	delete(a.objects, objectName)
	return nil
}

const (
	owner = "ada@example.com"

	legacyResume = `{"sections":[{"sectionKey":"personal-information","items":[{"id":"p1","values":{"first-name":"Ada","last-name":" Lovelace "}}]}]}`

	resumeText = `Ada Lovelace
Backend Engineer | ada@example.com | github.com/ada

Experience
Acme Corp, Senior Engineer, 2020-01 to 2024-05`

	importOutput = `{"sections":[
		{"sectionKey":"personal-information","items":[{"id":"","values":{"first-name":"Ada","last-name":"Lovelace","github":"ada"}}]},
		{"sectionKey":"work-experience","items":[{"id":"","values":{"company":"Acme Corp"}}]}
	]}`

	analysisOutput = `{"designation":"Backend Engineer","overall_summary":"Solid","recruiter_feedback":"Add metrics",
		"strengths":["Go"],"risks":[],
		"sections":[{"sectionKey":"work-experience","summary":"ok","issues":[
			{"severity":"info","category":"impact","message":"m","suggestion":"s","sectionKey":"work-experience","itemId":null,"fieldKey":"company","replacement":null}
		]}]}`
)

type fixture struct {
	engine  *resume.Engine
	store   *fakeStore
	archive *fakeArchive
	mock    *agent.MockChatModel
	factory *agent.MockFactory
	svc     *ResumeService
}

func newFixture(responses ...agent.MockResponse) *fixture {
	n := 0
	engine := resume.NewEngine(resume.NewDefaultRegistry(), resume.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}))
	policy := agent.RetryPolicy{CallTimeout: time.Second}
	f := &fixture{
		engine:  engine,
		store:   newFakeStore(),
		archive: &fakeArchive{objects: map[string]string{}},
		mock:    agent.NewMockChatModel(responses...),
	}
	f.factory = &agent.MockFactory{Model: f.mock}
	f.svc = NewResumeService(engine, f.store, f.factory,
		WithTextArchive(f.archive),
		WithModelNames("import-model", "analysis-model"),
		WithImporter(parser.NewTextImporter(engine, parser.WithImportRetryPolicy(policy))),
		WithAnalyzer(analysis.NewAnalyzer(engine, analysis.WithRetryPolicy(policy))),
	)
	return f
}

func (f *fixture) canonical(t *testing.T, raw string) string {
	t.Helper()
	data, err := json.Marshal(f.engine.Upgrader().UpgradeJSON([]byte(raw)))
	require.NoError(t, err)
	return string(data)
}

func session() *models.Session {
	return &models.Session{Email: owner, SessionToken: "tok", OpenAIKey: "sk-user"}
}

func TestResumeService_List(t *testing.T) {
	f := newFixture()
	f.store.put(owner, "r-3", f.canonical(t, legacyResume))
	f.store.put(owner, "r-2", `{"sections":[{"sectionKey":"personal-information","items":[{"id":"p","values":{"first-name":"  "}}]}]}`)
	f.store.put(owner, "r-1", "")
	f.store.put("other@example.com", "r-9", f.canonical(t, legacyResume))

	items, err := f.svc.List(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "r-3", items[0].ResumeID)
	assert.Equal(t, "Ada Lovelace", items[0].Label)
	assert.True(t, items[0].HasContent)
	assert.Equal(t, owner, items[1].Label, "姓名为空时退回邮箱")
	assert.False(t, items[2].HasContent)
	assert.Equal(t, owner, items[2].Label)
}

func TestResumeService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("不存在", func(t *testing.T) {
		f := newFixture()
		f.store.put("other@example.com", "r-1", legacyResume)
		_, err := f.svc.Get(ctx, owner, "r-1")
		assert.ErrorIs(t, err, ErrResumeNotFound)
	})

	t.Run("尚未就绪", func(t *testing.T) {
		f := newFixture()
		f.store.put(owner, "r-1", "")
		_, err := f.svc.Get(ctx, owner, "r-1")
		assert.ErrorIs(t, err, ErrResumeNotReady)
	})

	t.Run("旧结构升级并回写", func(t *testing.T) {
		f := newFixture()
		f.store.put(owner, "r-1", legacyResume)

		view, err := f.svc.Get(ctx, owner, "r-1")
		require.NoError(t, err)
		assert.Equal(t, "r-1", view.ResumeID)
		assert.Len(t, view.Sections, len(resume.DefaultSections()))
		assert.Equal(t, []string{models.EventResumeUpdated}, f.store.events)

		stored := f.engine.Upgrader().UpgradeJSON(f.store.resumes["r-1"].NormalizedJSON)
		assert.True(t, stored.Equal(view.Document))
	})

	t.Run("读取后被用户保存时放弃回写", func(t *testing.T) {
		f := newFixture()
		f.store.put(owner, "r-1", legacyResume)
		edited := f.canonical(t, `{"sections":[{"sectionKey":"skills","items":[{"id":"s1","values":{"skill":"Rust"}}]}]}`)
		f.store.beforeConditionalSave = func() {
			require.NoError(t, f.store.SaveResumeDocument(ctx, owner, "r-1", []byte(edited), models.EventResumeUpdated))
		}

		view, err := f.svc.Get(ctx, owner, "r-1")
		require.NoError(t, err)
		assert.Len(t, view.Sections, len(resume.DefaultSections()))
		assert.Equal(t, edited, string(f.store.resumes["r-1"].NormalizedJSON), "用户的保存不能被覆盖")
		assert.Len(t, f.store.events, 1, "只记录用户那一次保存")
	})

	t.Run("已是规范结构时不回写", func(t *testing.T) {
		f := newFixture()
		f.store.put(owner, "r-1", f.canonical(t, legacyResume))
		_, err := f.svc.Get(ctx, owner, "r-1")
		require.NoError(t, err)
		assert.Empty(t, f.store.events)
	})
}

func TestResumeService_Save(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.put(owner, "r-1", "")

	payload := f.canonical(t, legacyResume)
	view, err := f.svc.Save(ctx, owner, "r-1", []byte(payload))
	require.NoError(t, err)
	item, ok := view.FirstItem(resume.SectionPersonalInformation)
	require.True(t, ok)
	assert.Equal(t, "p1", item.ID)
	assert.Equal(t, []string{models.EventResumeUpdated}, f.store.events)

	_, err = f.svc.Save(ctx, owner, "r-1", []byte(`{"sections":[]}`))
	assert.True(t, IsValidationError(err))

	_, err = f.svc.Save(ctx, owner, "r-1", []byte(`not json`))
	assert.True(t, IsValidationError(err))

	_, err = f.svc.Save(ctx, owner, "missing", []byte(payload))
	assert.ErrorIs(t, err, ErrResumeNotFound)
}

func TestResumeService_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.store.put(owner, "r-1", legacyResume)
	f.store.resumes["r-1"].ImportTextPath = "imports/r-1/source.txt"

	require.NoError(t, f.svc.Delete(ctx, owner, "r-1"))
	assert.Equal(t, []string{"imports/r-1/source.txt"}, f.archive.deleted)
	assert.ErrorIs(t, f.svc.Delete(ctx, owner, "r-1"), ErrResumeNotFound)
}

func TestResumeService_ImportText(t *testing.T) {
	ctx := context.Background()
	f := newFixture(agent.MockResponse{Content: importOutput})

	view, err := f.svc.ImportText(ctx, session(), resumeText)
	require.NoError(t, err)

	assert.Equal(t, "r-1", view.ResumeID)
	assert.Equal(t, []string{"sk-user"}, f.factory.APIKeys, "使用会话自己的密钥")
	assert.Equal(t, []string{"import-model"}, f.factory.ModelName)

	personal, ok := view.FirstItem(resume.SectionPersonalInformation)
	require.True(t, ok)
	assert.Equal(t, "https://github.com/ada", personal.Values["github"])

	row := f.store.resumes["r-1"]
	assert.True(t, row.HasContent())
	assert.Equal(t, "imports/r-1/source.txt", row.ImportTextPath)
	assert.True(t, strings.HasPrefix(f.archive.objects[row.ImportTextPath], "Ada Lovelace"))
	assert.Equal(t, []string{models.EventResumeImported}, f.store.events)
}

func TestResumeService_ImportSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(agent.MockResponse{Content: importOutput})
	_, err := f.svc.ImportText(ctx, session(), resumeText)
	require.NoError(t, err)

	src, err := f.svc.ImportSource(ctx, owner, "r-1")
	require.NoError(t, err)
	assert.Equal(t, "r-1", src.ResumeID)
	assert.Equal(t, f.archive.objects["imports/r-1/source.txt"], src.Text)

	_, err = f.svc.ImportSource(ctx, "other@example.com", "r-1")
	assert.ErrorIs(t, err, ErrResumeNotFound)

	f.store.put(owner, "r-7", legacyResume)
	_, err = f.svc.ImportSource(ctx, owner, "r-7")
	assert.ErrorIs(t, err, ErrImportTextNotFound, "非文本导入的简历没有原文")

	delete(f.archive.objects, "imports/r-1/source.txt")
	_, err = f.svc.ImportSource(ctx, owner, "r-1")
	assert.ErrorIs(t, err, ErrImportTextNotFound, "对象已过期")

	noArchive := NewResumeService(f.engine, f.store, f.factory)
	_, err = noArchive.ImportSource(ctx, owner, "r-1")
	assert.ErrorIs(t, err, ErrImportTextNotFound)
}

func TestResumeService_ImportText_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("文本过短不建记录", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ImportText(ctx, session(), "too short")
		assert.ErrorIs(t, err, parser.ErrUnreadableText)
		assert.Empty(t, f.store.resumes)
		assert.Equal(t, 0, f.mock.Calls())
	})

	t.Run("上游失败后简历保持未就绪", func(t *testing.T) {
		f := newFixture(agent.MockResponse{Error: &agent.APIError{StatusCode: 401, Body: "bad key"}})
		_, err := f.svc.ImportText(ctx, session(), resumeText)
		assert.ErrorIs(t, err, ErrUpstreamLLM)
		var apiErr *agent.APIError
		assert.True(t, errors.As(err, &apiErr))

		_, err = f.svc.Get(ctx, owner, "r-1")
		assert.ErrorIs(t, err, ErrResumeNotReady)
	})

	t.Run("模型输出不合法", func(t *testing.T) {
		f := newFixture(agent.MockResponse{Content: "no json here"})
		_, err := f.svc.ImportText(ctx, session(), resumeText)
		assert.ErrorIs(t, err, parser.ErrInvalidOutput)
		assert.NotErrorIs(t, err, ErrUpstreamLLM)
	})

	t.Run("创建模型失败", func(t *testing.T) {
		f := newFixture()
		f.factory.Err = errors.New("OpenAI API Key 不能为空")
		_, err := f.svc.ImportText(ctx, session(), resumeText)
		assert.ErrorIs(t, err, ErrUpstreamLLM)
	})
}

func TestResumeService_Analyze(t *testing.T) {
	ctx := context.Background()
	f := newFixture(agent.MockResponse{Content: analysisOutput})
	f.store.put(owner, "r-1", f.canonical(t, legacyResume))

	view, err := f.svc.Analyze(ctx, session(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "a-1", view.AnalysisID)
	assert.Equal(t, "analysis-model", view.Model)
	assert.Equal(t, "Backend Engineer", view.Designation)
	assert.Equal(t, []string{"analysis-model"}, f.factory.ModelName)

	require.Len(t, f.store.analyses, 1)
	record := f.store.analyses[0]
	assert.Equal(t, owner, record.UserEmail)
	assert.JSONEq(t, f.canonical(t, legacyResume), string(record.SourceJSON))

	data, err := json.Marshal(view)
	require.NoError(t, err)
	var flat map[string]any
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, "a-1", flat["analysis_id"])
	assert.Equal(t, "Solid", flat["overall_summary"], "分析结果字段应平铺在响应中")

	list, err := f.svc.ListAnalyses(ctx, owner, "r-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "a-1", list[0].AnalysisID)
	require.Len(t, list[0].Sections, 1)
	assert.Equal(t, "company", *list[0].Sections[0].Issues[0].FieldKey)
}

func TestResumeService_Analyze_Errors(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.store.put(owner, "r-1", "")
	_, err := f.svc.Analyze(ctx, session(), "r-1")
	assert.ErrorIs(t, err, ErrResumeNotReady)
	assert.Equal(t, 0, f.mock.Calls())

	_, err = f.svc.ListAnalyses(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrResumeNotFound)

	f = newFixture(agent.MockResponse{Content: `{"designation":"x"}`})
	f.store.put(owner, "r-1", legacyResume)
	_, err = f.svc.Analyze(ctx, session(), "r-1")
	assert.ErrorIs(t, err, analysis.ErrInvalidOutput)
	assert.Empty(t, f.store.analyses)
}

func TestSessionService(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	cache := &fakeCache{entries: map[string]*models.Session{}}
	svc := NewSessionService(store, cache)

	_, err := svc.Create(ctx, "   ")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	view, err := svc.Create(ctx, " ada@example.com ")
	require.NoError(t, err)
	assert.Equal(t, owner, view.Email)
	assert.Len(t, view.SessionToken, 43)
	assert.True(t, strings.HasPrefix(view.OpenAIKey, "sk-"))

	other, err := svc.Create(ctx, owner)
	require.NoError(t, err)
	assert.NotEqual(t, view.SessionToken, other.SessionToken)

	sess, err := svc.Authenticate(ctx, view.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, owner, sess.Email)
	assert.Equal(t, 1, store.lookups)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.Authenticate(ctx, view.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lookups, "第二次应命中缓存")

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrSessionMissing)
	_, err = svc.Authenticate(ctx, "nope")
	assert.ErrorIs(t, err, ErrInvalidSession)

	require.NoError(t, svc.Logout(ctx, view.SessionToken))
	_, err = svc.Authenticate(ctx, view.SessionToken)
	assert.ErrorIs(t, err, ErrInvalidSession, "注销后缓存也应失效")
	assert.ErrorIs(t, svc.Logout(ctx, view.SessionToken), ErrInvalidSession)
	assert.ErrorIs(t, svc.Logout(ctx, ""), ErrInvalidSession)
}

func TestSessionService_WithoutCache(t *testing.T) {
	ctx := context.Background()
	svc := NewSessionService(newFakeStore(), nil)
	view, err := svc.Create(ctx, owner)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, view.SessionToken)
	assert.NoError(t, err)
}
