package schema

import "fmt"

// Builder is a single compilation pass over an app's tool
// declarations. It owns the name registry, deduplicates record
// messages, and accumulates the file-level message list in a
// deterministic order: a tool's record messages precede its request
// and response messages, tools follow declaration order.
//
// A Builder is used once: Add each declaration, then Finish. After
// Finish both operations fail with ErrAlreadyCompiled. Builders are
// not safe for concurrent use.
type Builder struct {
	reg     *NameRegistry
	service string

	records  map[*RecordType]string
	messages []MessageSchema
	tools    []ToolSchema
	built    bool
}

// fieldDecl is the builder-internal shape of one message field before
// numbering.
type fieldDecl struct {
	name       string
	typ        TypeRef
	doc        string
	def        any
	hasDefault bool
}

// NewBuilder starts a compilation pass for the named app. The service
// name is derived from the app name: "image magic" becomes
// ImageMagicService.
func NewBuilder(appName string) (*Builder, error) {
	reg := NewNameRegistry()
	service, err := reg.Reserve(ScopeServices, CamelCase(SanitizeIdent(appName))+"Service")
	if err != nil {
		return nil, fmt.Errorf("service name for app %q: %w", appName, err)
	}
	return &Builder{
		reg:     reg,
		service: service,
		records: make(map[*RecordType]string),
	}, nil
}

// ServiceName returns the reserved service name.
func (b *Builder) ServiceName() string { return b.service }

// Add compiles one declaration into a tool schema. The method name is
// the declared tool name after collision resolution; request and
// response message names derive from it. Field numbers follow
// declaration order starting at 1, and the response's single field is
// always number 1.
//
// Add is all or nothing: a failed declaration releases every name it
// reserved, so nothing of the partial schema survives into later
// declarations.
func (b *Builder) Add(d Declaration) (ToolSchema, error) {
	if b.built {
		return ToolSchema{}, fmt.Errorf("%w: add tool %q", ErrAlreadyCompiled, d.Name)
	}

	d, err := Inspect(d)
	if err != nil {
		return ToolSchema{}, err
	}

	method, err := b.reg.Reserve(MethodScope(b.service), d.Name)
	if err != nil {
		return ToolSchema{}, err
	}
	base := CamelCase(method)
	reqName, err := b.reg.Reserve(ScopeMessages, base+"Request")
	if err != nil {
		_ = b.reg.Release(MethodScope(b.service), method)
		return ToolSchema{}, fmt.Errorf("tool %q: %w", method, err)
	}
	respName, err := b.reg.Reserve(ScopeMessages, base+"Response")
	if err != nil {
		_ = b.reg.Release(ScopeMessages, reqName)
		_ = b.reg.Release(MethodScope(b.service), method)
		return ToolSchema{}, fmt.Errorf("tool %q: %w", method, err)
	}

	reqFields := make([]fieldDecl, len(d.Params))
	for i, p := range d.Params {
		reqFields[i] = fieldDecl{
			name:       p.Name,
			typ:        p.Type,
			doc:        p.Doc,
			def:        p.Default,
			hasDefault: p.HasDefault,
		}
	}
	request, err := b.buildMessage(reqName, "", reqFields)
	if err != nil {
		_ = b.reg.Release(ScopeMessages, respName)
		_ = b.reg.Release(ScopeMessages, reqName)
		_ = b.reg.Release(MethodScope(b.service), method)
		return ToolSchema{}, fmt.Errorf("tool %q: %w", method, err)
	}

	var respFields []fieldDecl
	if !d.Return.Void() {
		respFields = []fieldDecl{{
			name: ResponseFieldName,
			typ:  d.Return.Type,
			doc:  d.Return.Doc,
		}}
	}
	response, err := b.buildMessage(respName, "", respFields)
	if err != nil {
		b.releaseMessage(request)
		_ = b.reg.Release(ScopeMessages, respName)
		_ = b.reg.Release(ScopeMessages, reqName)
		_ = b.reg.Release(MethodScope(b.service), method)
		return ToolSchema{}, fmt.Errorf("tool %q: %w", method, err)
	}

	b.messages = append(b.messages, request, response)

	tool := ToolSchema{
		Name:     method,
		Doc:      d.Doc,
		Icon:     d.Icon,
		Request:  request,
		Response: response,
		Return:   d.Return.Kind,
	}
	b.tools = append(b.tools, tool)
	return tool, nil
}

// Finish freezes the pass and returns the assembled service schema.
func (b *Builder) Finish() (ServiceSchema, error) {
	if b.built {
		return ServiceSchema{}, fmt.Errorf("%w: service %q", ErrAlreadyCompiled, b.service)
	}
	if len(b.tools) == 0 {
		return ServiceSchema{}, fmt.Errorf("%w: service %q has no tools", ErrSchemaBuild, b.service)
	}
	b.built = true
	b.reg.Freeze()
	return ServiceSchema{
		Name:     b.service,
		Tools:    b.tools,
		Messages: b.messages,
	}, nil
}

// buildMessage numbers and maps an ordered field list into a message
// schema. Record field types register their message on first use. On
// failure the message's own field reservations are released; the
// message name itself belongs to the caller.
func (b *Builder) buildMessage(name, doc string, fields []fieldDecl) (MessageSchema, error) {
	msg := MessageSchema{Name: name, Doc: doc, Fields: make([]FieldSpec, 0, len(fields))}
	for i, f := range fields {
		m, err := MapType(f.typ)
		if err != nil {
			b.releaseMessage(msg)
			return MessageSchema{}, fmt.Errorf("field %q: %w", f.name, err)
		}

		typeName := ""
		if m.Wire == WireMessage {
			typeName, err = b.recordMessage(m.Message)
			if err != nil {
				b.releaseMessage(msg)
				return MessageSchema{}, fmt.Errorf("field %q: %w", f.name, err)
			}
		}

		fieldName, err := b.reg.Reserve(FieldScope(name), f.name)
		if err != nil {
			b.releaseMessage(msg)
			return MessageSchema{}, err
		}

		msg.Fields = append(msg.Fields, FieldSpec{
			Name:       fieldName,
			Number:     int32(i + 1),
			Wire:       m.Wire,
			Repeated:   m.Repeated,
			Optional:   m.Optional,
			Map:        m.Map,
			TypeName:   typeName,
			Doc:        f.doc,
			Default:    f.def,
			HasDefault: f.hasDefault,
		})
	}
	return msg, nil
}

// releaseMessage returns a message's field reservations to the
// registry, newest first.
func (b *Builder) releaseMessage(msg MessageSchema) {
	for i := len(msg.Fields) - 1; i >= 0; i-- {
		_ = b.reg.Release(FieldScope(msg.Name), msg.Fields[i].Name)
	}
}

// recordMessage returns the wire message name for a record, building
// and registering the message on first reference. Identity is the
// *RecordType pointer: two tools sharing a record share its message,
// while distinct records with equal names get suffixed apart.
func (b *Builder) recordMessage(rec *RecordType) (string, error) {
	if name, ok := b.records[rec]; ok {
		return name, nil
	}

	name, err := b.reg.Reserve(ScopeMessages, CamelCase(rec.Name))
	if err != nil {
		return "", fmt.Errorf("record %q: %w", rec.Name, err)
	}

	fields := make([]fieldDecl, len(rec.Fields))
	for i, f := range rec.Fields {
		fields[i] = fieldDecl{name: f.Name, typ: f.Type, doc: f.Doc}
	}
	msg, err := b.buildMessage(name, rec.Doc, fields)
	if err != nil {
		_ = b.reg.Release(ScopeMessages, name)
		return "", fmt.Errorf("record %q: %w", rec.Name, err)
	}

	b.records[rec] = name
	b.messages = append(b.messages, msg)
	return name, nil
}

// BuildService compiles a full declaration set in one call. It is the
// convenience form of NewBuilder, Add and Finish.
func BuildService(appName, doc string, decls []Declaration) (ServiceSchema, error) {
	b, err := NewBuilder(appName)
	if err != nil {
		return ServiceSchema{}, err
	}
	for _, d := range decls {
		if _, err := b.Add(d); err != nil {
			return ServiceSchema{}, err
		}
	}
	svc, err := b.Finish()
	if err != nil {
		return ServiceSchema{}, err
	}
	svc.Doc = doc
	return svc, nil
}
