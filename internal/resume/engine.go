package resume

// Engine 组合注册表、升级器与校验器，供服务层注入使用
type Engine struct {
	registry  *Registry
	upgrader  *Upgrader
	validator *Validator
}

// NewEngine 基于注册表创建 Engine
func NewEngine(registry *Registry, opts ...UpgraderOption) *Engine {
	return &Engine{
		registry:  registry,
		upgrader:  NewUpgrader(registry, opts...),
		validator: NewValidator(registry),
	}
}

func (e *Engine) Registry() *Registry { return e.registry }

func (e *Engine) Upgrader() *Upgrader { return e.upgrader }

func (e *Engine) Validator() *Validator { return e.validator }

// Upgrade 见 Upgrader.Upgrade
func (e *Engine) Upgrade(input Value) Document {
	return e.upgrader.Upgrade(input)
}

// Validate 见 Validator.Validate
func (e *Engine) Validate(doc *Document) error {
	return e.validator.Validate(doc)
}

// ParseStrict 见 Validator.ParseStrict
func (e *Engine) ParseStrict(input Value) (Document, error) {
	return e.validator.ParseStrict(input)
}

// UpgradeAndValidate 升级后再校验，升级结果理论上总能通过校验
func (e *Engine) UpgradeAndValidate(input Value) (Document, error) {
	doc := e.upgrader.Upgrade(input)
	if err := e.validator.Validate(&doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}
