package bridge

// Detect inspects env and returns the host convention present. The Android
// object is checked first; the first match wins. Detect has no side effects
// and is cheap enough for UI conditionals.
func Detect(env Environment) Kind {
	return DetectWithObject(env, DefaultAndroidObject)
}

// DetectWithObject is Detect with a non-default Android interface name.
func DetectWithObject(env Environment, androidObject string) Kind {
	if env == nil {
		return KindNone
	}
	if androidObject != "" && env.HasFunction(androidObject, MethodList) {
		return KindAndroid
	}
	if env.HasFunction(iosHandlerPath(MethodList)...) {
		return KindIOS
	}
	return KindNone
}

func iosHandlerPath(method string) []string {
	return []string{"webkit", "messageHandlers", method, "postMessage"}
}
