// internal/page/analyzer_script.go
package page

// snapshotScript is the in-page program behind every snapshot. It enumerates
// interactive elements plus salient text in the current viewport, classifies
// each into a semantic kind, builds a best-effort unique selector, detects up
// to two overlay/modal regions, and returns both the indexed element list and
// a human-readable content stream.
//
// Element ids are assigned 0..n-1 in discovery order, base-document elements
// before popup elements, so ids stay contiguous.
const snapshotScript = `
(() => {
    // Combined viewport and visibility check.
    function isVisibleInViewport(el) {
        const rect = el.getBoundingClientRect();

        if (rect.width <= 0 || rect.height <= 0) return false;

        if (rect.bottom <= 0 || rect.top >= window.innerHeight ||
            rect.right <= 0 || rect.left >= window.innerWidth) return false;

        // Only consult computed style once the cheap checks pass.
        const style = window.getComputedStyle(el);
        return style.display !== 'none' &&
               style.visibility !== 'hidden' &&
               parseFloat(style.opacity) > 0.1;
    }

    // Classify an element into a semantic kind, or null for plain content.
    function getElementType(el) {
        const tag = el.tagName.toLowerCase();
        const type = el.type ? el.type.toLowerCase() : '';
        const role = el.getAttribute('role') ? el.getAttribute('role').toLowerCase() : '';

        if (tag === 'a') return 'link';
        if (tag === 'button') return 'button';
        if (tag === 'select') return 'dropdown';
        if (tag === 'textarea') return 'textarea';

        if (tag === 'input') {
            if (type === 'submit' || type === 'button' || type === 'reset') return 'button';
            if (type === 'checkbox') return 'checkbox';
            if (type === 'radio') return 'radio';
            return 'input';
        }

        if (role === 'button') return 'button';
        if (role === 'link') return 'link';
        if (role === 'checkbox') return 'checkbox';
        if (role === 'radio') return 'radio';
        if (role === 'textbox' || role === 'searchbox') return 'input';
        if (role === 'combobox' || role === 'listbox') return 'dropdown';
        if (role === 'tab') return 'tab';

        const style = window.getComputedStyle(el);
        const hasClickHandler = el.onclick || el.getAttribute('onclick');
        const isPointer = style.cursor === 'pointer';

        if ((tag === 'div' || tag === 'span') && (hasClickHandler || isPointer)) {
            if (el.getAttribute('aria-haspopup') === 'true') return 'dropdown';
            return 'button';
        }

        if (tag === 'label') return 'label';
        if (tag === 'img' && (isPointer || hasClickHandler)) return 'image';
        if (['h1','h2','h3','h4','h5','h6'].includes(tag) && (isPointer || hasClickHandler)) return 'header';

        if (hasClickHandler || el.getAttribute('tabindex') === '0' || isPointer) return 'interactive';

        return null;
    }

    // Best-effort unique selector: id, then likely-unique data attributes,
    // then a structural path narrowed with nth-child, last resort parent
    // qualification.
    function generateSelector(el) {
        if (!el) return '';

        if (el.id && el.id.trim()) {
            const escapedId = CSS.escape(el.id);
            if (document.querySelectorAll('#' + escapedId).length === 1) {
                return '#' + escapedId;
            }
        }

        const uniqueAttrs = ['data-testid', 'data-cy', 'data-test', 'name'];
        for (const attr of uniqueAttrs) {
            const value = el.getAttribute(attr);
            if (value && value.trim()) {
                const selector = '[' + attr + '="' + CSS.escape(value) + '"]';
                if (document.querySelectorAll(selector).length === 1) {
                    return selector;
                }
            }
        }

        let selector = el.tagName.toLowerCase();

        if (selector === 'input' && el.type) {
            selector += '[type="' + el.type + '"]';
        }

        if (el.classList && el.classList.length > 0) {
            const classes = Array.from(el.classList)
                .filter(cls => cls.length > 0 && !cls.match(/^(ng-|_|css-)/))
                .slice(0, 2);
            if (classes.length > 0) {
                selector += '.' + classes.map(cls => CSS.escape(cls)).join('.');
            }
        }

        if (document.querySelectorAll(selector).length > 1) {
            const parent = el.parentElement;
            if (parent) {
                const siblings = Array.from(parent.children).filter(child =>
                    child.tagName === el.tagName &&
                    (el.className === child.className || (!el.className && !child.className))
                );
                if (siblings.length > 1) {
                    const index = siblings.indexOf(el) + 1;
                    selector += ':nth-child(' + index + ')';
                }
            }
        }

        if (document.querySelectorAll(selector).length > 1 && el.parentElement) {
            const parentTag = el.parentElement.tagName.toLowerCase();
            const parentClass = el.parentElement.classList.length > 0 ?
                '.' + Array.from(el.parentElement.classList)[0] : '';
            selector = parentTag + parentClass + ' > ' + selector;
        }

        return selector;
    }

    function cleanText(text) {
        return text ? text.replace(/\s+/g, ' ').trim() : '';
    }

    // Overlay/modal detection: role and class patterns first, then high
    // z-index fixed/absolute elements of reasonable size.
    function findVisiblePopups() {
        const popups = [];
        const modalSelectors = [
            '[role="dialog"]', '[role="alertdialog"]', '[aria-modal="true"]',
            '.modal', '.dialog', '.popup', '.overlay', '.pop-up', '.popover',
            '.ant-modal', '.MuiDialog-root', '.ReactModal__Content', '.modal-dialog',
            '[class*="modal"]', '[class*="dialog"]', '[class*="popup"]'
        ];

        for (const selector of modalSelectors) {
            let elements;
            try {
                elements = document.querySelectorAll(selector);
            } catch (e) {
                continue;
            }
            for (const el of elements) {
                if (isVisibleInViewport(el) && !popups.includes(el)) {
                    popups.push(el);
                }
            }
        }

        const candidates = document.querySelectorAll('div[style*="position"], section[style*="position"]');
        for (const el of candidates) {
            if (isVisibleInViewport(el) && !popups.includes(el)) {
                const style = window.getComputedStyle(el);
                if ((style.position === 'fixed' || style.position === 'absolute') &&
                    parseInt(style.zIndex) > 10) {
                    const rect = el.getBoundingClientRect();
                    if (rect.width > 100 && rect.height > 100) {
                        popups.push(el);
                    }
                }
            }
        }

        return popups;
    }

    function buildRecord(el, id, type, text, isPopup) {
        const rect = el.getBoundingClientRect();
        return {
            id: id,
            tag: el.tagName.toLowerCase(),
            type: type,
            text: text,
            selector: generateSelector(el),
            x: rect.left + window.pageXOffset,
            y: rect.top + window.pageYOffset,
            width: rect.width,
            height: rect.height,
            centerX: rect.left + rect.width / 2 + window.pageXOffset,
            centerY: rect.top + rect.height / 2 + window.pageYOffset,
            disabled: !!(el.disabled || el.hasAttribute('disabled')),
            visible: true,
            inViewport: true,
            isPopup: isPopup,
            attributes: {
                id: el.id || '',
                class: (typeof el.className === 'string' ? el.className : '') || '',
                href: el.href || '',
                value: el.value || '',
                placeholder: el.placeholder || '',
                ariaLabel: el.getAttribute('aria-label') || '',
                title: el.getAttribute('title') || '',
                role: el.getAttribute('role') || ''
            }
        };
    }

    function extractContent() {
        const content = [];
        const elements = [];
        let elementId = 0;

        const interactiveSelectors = 'a, button, input, select, textarea, [onclick], [role="button"], [role="link"], [tabindex="0"], label, img[onclick], div[onclick], span[onclick]';
        const allElements = document.querySelectorAll(interactiveSelectors);

        for (const el of allElements) {
            if (!isVisibleInViewport(el)) continue;

            const type = getElementType(el);
            if (!type) continue;

            let text = cleanText(el.textContent || el.value || el.placeholder ||
                               el.getAttribute('aria-label') || el.getAttribute('title') ||
                               el.alt || type);

            if ((type === 'input' || type === 'textarea') && !text) {
                text = el.getAttribute('name') || el.getAttribute('placeholder') || type;
            }

            if (text.length > 100) text = text.substring(0, 100) + '...';

            // A label identical to the classified kind carries no information.
            if (text === type) continue;

            const record = buildRecord(el, elementId, type, text, false);
            content.push('[' + elementId + '][' + type + '][' + record.selector + ']' + text);
            elements.push(record);
            elementId++;
        }

        // Salient non-interactive text: direct text nodes only, so container
        // elements do not repeat their children's content.
        const textElements = document.querySelectorAll('h1, h2, h3, h4, h5, h6, p, span, div, li, td, th');
        for (const el of textElements) {
            if (!isVisibleInViewport(el)) continue;

            let ownText = '';
            for (const child of el.childNodes) {
                if (child.nodeType === Node.TEXT_NODE) {
                    ownText += child.textContent;
                }
            }
            ownText = cleanText(ownText);

            if (ownText && ownText.length > 1 && ownText.length < 200 &&
                !ownText.match(/^\s*[\d\W]*\s*$/)) {
                content.push(ownText);
            }
        }

        const popups = findVisiblePopups();
        if (popups.length > 0) {
            content.push('--- Modal/Popup Detected ---');
            for (const popup of popups.slice(0, 2)) {
                const popupElements = popup.querySelectorAll(interactiveSelectors);
                for (const el of popupElements) {
                    if (!isVisibleInViewport(el)) continue;
                    const type = getElementType(el);
                    if (!type) continue;
                    let text = cleanText(el.textContent || el.value || el.placeholder ||
                                       el.getAttribute('aria-label') || type);
                    if (text !== type && text.length > 0) {
                        if (text.length > 100) text = text.substring(0, 100) + '...';
                        const record = buildRecord(el, elementId, type, text, true);
                        content.push('[' + elementId + '][' + type + '][' + record.selector + ']' + text);
                        elements.push(record);
                        elementId++;
                    }
                }
            }
            content.push('--- End of Popup ---');
        }

        return { content: content, elements: elements };
    }

    return extractContent();
})()
`
