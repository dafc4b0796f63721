package auth

import "context"

type subjectKey struct{}

// anonymousCaller 是未开启鉴权或未识别令牌时记录的调用方名称。
const anonymousCaller = "anonymous"

// WithSubject 把令牌持有者挂到请求上下文。
func WithSubject(ctx context.Context, subject *Subject) context.Context {
	if subject == nil {
		return ctx
	}
	subject.normalise()
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext 取出当前请求的令牌持有者，没有时返回 nil。
func SubjectFromContext(ctx context.Context) *Subject {
	if ctx == nil {
		return nil
	}
	subject, _ := ctx.Value(subjectKey{}).(*Subject)
	return subject
}

// CallerName 返回用于日志的调用方名称。
func CallerName(ctx context.Context) string {
	if subject := SubjectFromContext(ctx); subject != nil && subject.Name != "" {
		return subject.Name
	}
	return anonymousCaller
}
